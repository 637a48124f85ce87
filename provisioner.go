package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/uslanozan/fault-diagnosis-agent/diagnosis"
	"github.com/uslanozan/fault-diagnosis-agent/models"
	"github.com/uslanozan/fault-diagnosis-agent/prompts"
	"github.com/uslanozan/fault-diagnosis-agent/store"
)

// AgentAPI is the part of the Foundry client the provisioner needs.
type AgentAPI interface {
	CreateAgentVersion(ctx context.Context, name string, req models.CreateAgentVersionRequest) (*models.AgentVersion, error)
	CreateConversation(ctx context.Context) (*models.Conversation, error)
	Ask(ctx context.Context, conversationID, agentName, input string) (*models.Reply, error)
}

// Provisioner creates the agent and smoke-tests it.
type Provisioner struct {
	Client    AgentAPI
	Tools     *ToolRegistry
	Recorder  store.Recorder
	Validator *diagnosis.Validator
	Out       io.Writer

	AgentName   string
	Description string
	Model       string
}

// ProvisionOptions tune a single Provision call.
type ProvisionOptions struct {
	SmokeMessage  string
	SkipSmokeTest bool
}

// SmokeResult is the outcome of one smoke test.
type SmokeResult struct {
	Reply    *models.Reply
	Contract diagnosis.Result
	// ContractErr is set when the answer is not a JSON object at all.
	ContractErr error
}

func NewProvisioner(cfg *Config, client AgentAPI, tools *ToolRegistry, recorder store.Recorder, validator *diagnosis.Validator, out io.Writer) *Provisioner {
	if recorder == nil {
		recorder = store.Nop{}
	}
	return &Provisioner{
		Client:      client,
		Tools:       tools,
		Recorder:    recorder,
		Validator:   validator,
		Out:         out,
		AgentName:   cfg.AgentName,
		Description: cfg.AgentDescription,
		Model:       cfg.Model,
	}
}

// Definition builds the create-version request for the configured agent.
func (p *Provisioner) Definition(runID string) (models.CreateAgentVersionRequest, error) {
	if p.Tools == nil || p.Tools.Len() == 0 {
		return models.CreateAgentVersionRequest{}, ErrNoTools
	}
	schema, err := diagnosis.SchemaJSON()
	if err != nil {
		return models.CreateAgentVersionRequest{}, fmt.Errorf("output schema: %w", err)
	}
	severities := make([]string, 0, len(models.Severities()))
	for _, s := range models.Severities() {
		severities = append(severities, string(s))
	}
	instructions, err := prompts.Instructions(prompts.InstructionData{
		Tools:            p.Tools.ToolLines(),
		Severities:       severities,
		UnknownRootCause: models.UnknownRootCause,
		Schema:           string(schema),
	})
	if err != nil {
		return models.CreateAgentVersionRequest{}, err
	}

	req := models.CreateAgentVersionRequest{
		Description: p.Description,
		Definition: models.PromptAgentDefinition{
			Kind:         "prompt",
			Model:        p.Model,
			Instructions: instructions,
			Tools:        p.Tools.Tools(),
		},
	}
	if runID != "" {
		req.Metadata = map[string]string{"provisioning_run": runID}
	}
	return req, nil
}

// Provision creates a new agent version and, unless skipped, sends one smoke
// test message to it. A failed smoke test is reported and never fails the run.
func (p *Provisioner) Provision(ctx context.Context, opts ProvisionOptions) (*models.ProvisioningRun, error) {
	run := &models.ProvisioningRun{
		RunID:     uuid.NewString(),
		AgentName: p.AgentName,
		Model:     p.Model,
	}
	log := slog.With("run_id", run.RunID, "agent", p.AgentName)

	// 1. Build the definition: model, rendered instructions, tools
	req, err := p.Definition(run.RunID)
	if err != nil {
		return p.fail(ctx, run, err)
	}

	// 2. Create the agent version
	log.Info("creating agent version", "model", p.Model, "tools", len(req.Definition.Tools))
	version, err := p.Client.CreateAgentVersion(ctx, p.AgentName, req)
	if err != nil {
		return p.fail(ctx, run, err)
	}
	run.AgentID = version.ID
	run.AgentVersion = version.Version
	run.Status = models.RunCreated
	fmt.Fprintf(p.Out, "✅ Created Fault Diagnosis Agent: %s\n", version.ID)

	if opts.SkipSmokeTest {
		log.Info("smoke test skipped")
		p.record(ctx, run)
		return run, nil
	}

	// 3. Smoke test; from here on failures only warn
	agentName := version.Name
	if agentName == "" {
		agentName = p.AgentName
	}
	fmt.Fprintln(p.Out, "\n🧪 Testing the agent with a sample query...")
	res, err := p.SmokeTest(ctx, agentName, opts.SmokeMessage)
	if err != nil {
		fmt.Fprintf(p.Out, "⚠️  Agent test failed (but agent was still created): %v\n", err)
		run.Status = models.RunSmokeFailed
		run.Error = err.Error()
		if res != nil && res.Reply != nil {
			run.SmokeOutput = res.Reply.OutputText
		}
		p.record(ctx, run)
		return run, nil
	}

	// 4. Report and record
	fmt.Fprintf(p.Out, "✅ Agent response: %s\n", res.Reply.OutputText)
	run.Status = models.RunVerified
	run.SmokeOutput = res.Reply.OutputText
	run.ContractValid = res.ContractErr == nil && res.Contract.Valid
	p.record(ctx, run)
	return run, nil
}

// SmokeTest opens a conversation with agentName and sends message, or the
// default smoke-test question when message is empty. The answer is checked
// against the output contract for reporting only.
func (p *Provisioner) SmokeTest(ctx context.Context, agentName, message string) (*SmokeResult, error) {
	if message == "" {
		message = prompts.SmokeTestMessage()
	}

	conv, err := p.Client.CreateConversation(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("conversation opened", "conversation", conv.ID)

	reply, err := p.Client.Ask(ctx, conv.ID, agentName, message)
	if err != nil {
		return &SmokeResult{Reply: reply}, err
	}

	res := &SmokeResult{Reply: reply}
	if p.Validator != nil {
		res.Contract, res.ContractErr = p.Validator.Validate(reply.OutputText)
		switch {
		case res.ContractErr != nil:
			slog.Warn("agent answer is not a diagnosis object", "err", res.ContractErr)
		case !res.Contract.Valid:
			slog.Warn("agent answer breaks the output contract", "problems", res.Contract.Summary())
		default:
			slog.Info("agent answer matches the output contract",
				"machine", res.Contract.Diagnosis.MachineID,
				"severity", res.Contract.Diagnosis.Severity,
				"grounded", !res.Contract.Diagnosis.Ungrounded())
		}
	}
	return res, nil
}

func (p *Provisioner) fail(ctx context.Context, run *models.ProvisioningRun, err error) (*models.ProvisioningRun, error) {
	run.Status = models.RunFailed
	run.Error = err.Error()
	p.record(ctx, run)
	return run, err
}

// record never fails the run; history is best effort.
func (p *Provisioner) record(ctx context.Context, run *models.ProvisioningRun) {
	if p.Recorder == nil {
		return
	}
	// The run is written even when ctx was cancelled mid-flight.
	if err := p.Recorder.Record(context.WithoutCancel(ctx), run); err != nil && !errors.Is(err, store.ErrNotConfigured) {
		slog.Warn("could not record provisioning run", "run_id", run.RunID, "err", err)
	}
}
