package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/uslanozan/fault-diagnosis-agent/diagnosis"
	"github.com/uslanozan/fault-diagnosis-agent/foundry"
	"github.com/uslanozan/fault-diagnosis-agent/probe"
	"github.com/uslanozan/fault-diagnosis-agent/store"
)

var version = "dev"

const azLoginHint = "Make sure you have run 'az login' and have proper Azure credentials configured."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries what every command shares after the env file is loaded.
type app struct {
	out, errOut io.Writer

	logLevel    string
	envFile     string
	toolsConfig string

	cfg     *Config
	verbose bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	var popts ProvisionOptions

	root := &cobra.Command{
		Use:   "fault-diagnosis-agent",
		Short: "Provision the Fault Diagnosis Agent in an Azure AI Foundry project",
		Long: `Creates a new version of the Fault Diagnosis Agent (model, instructions and
the machine-data / machine-wiki MCP tools) and sends it one smoke-test question.
Running without a subcommand provisions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runProvision(cmd.Context(), popts)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL, else info)")
	pf.StringVar(&a.envFile, "env-file", ".env", "env file loaded before reading configuration; its values override the environment")
	pf.StringVar(&a.toolsConfig, "tools-config", "", "YAML file listing the agent's MCP tools (default from AGENT_TOOLS_CONFIG)")
	addProvisionFlags(root, &popts)

	root.AddCommand(
		a.provisionCmd(),
		a.smokeTestCmd(),
		a.probeCmd(),
		a.schemaCmd(),
		a.historyCmd(),
		a.deleteCmd(),
	)
	return root
}

func addProvisionFlags(cmd *cobra.Command, opts *ProvisionOptions) {
	cmd.Flags().StringVar(&opts.SmokeMessage, "message", "", "smoke-test message (default: the machine-001 curing temperature question)")
	cmd.Flags().BoolVar(&opts.SkipSmokeTest, "skip-smoke-test", false, "create the agent version without testing it")
}

func (a *app) setup(cmd *cobra.Command) error {
	explicit := cmd.Flags().Changed("env-file")
	if err := loadEnvFile(a.envFile, explicit); err != nil {
		return a.fatal(err)
	}
	cfg, err := NewConfig()
	if err != nil {
		return a.fatal(err)
	}
	if a.toolsConfig != "" {
		cfg.ToolsConfigFile = a.toolsConfig
	}
	a.verbose = initLogging(a.errOut, cfg.LogLevel, a.logLevel) == slog.LevelDebug
	a.cfg = cfg
	return nil
}

// fatal prints err for commands other than provision.
func (a *app) fatal(err error) error {
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	if foundry.IsAuthError(err) {
		fmt.Fprintln(a.errOut, azLoginHint)
	}
	return err
}

func (a *app) provisionCmd() *cobra.Command {
	var opts ProvisionOptions
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a new agent version and smoke-test it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runProvision(cmd.Context(), opts)
		},
	}
	addProvisionFlags(cmd, &opts)
	return cmd
}

func (a *app) runProvision(ctx context.Context, opts ProvisionOptions) error {
	p, closeFn, err := a.newProvisioner(ctx)
	if err == nil {
		defer closeFn()
		_, err = p.Provision(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(a.out, "❌ Error creating agent: %v\n", err)
		fmt.Fprintln(a.out, azLoginHint)
		return err
	}
	return nil
}

func (a *app) smokeTestCmd() *cobra.Command {
	var message, agentName string
	cmd := &cobra.Command{
		Use:   "smoke-test",
		Short: "Send one message to an already provisioned agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, closeFn, err := a.newProvisioner(ctx)
			if err != nil {
				return a.fatal(err)
			}
			defer closeFn()
			if agentName == "" {
				agentName = a.cfg.AgentName
			}

			fmt.Fprintln(a.out, "🧪 Testing the agent with a sample query...")
			res, err := p.SmokeTest(ctx, agentName, message)
			if err != nil {
				fmt.Fprintf(a.out, "⚠️  Agent test failed: %v\n", err)
				return err
			}
			fmt.Fprintf(a.out, "✅ Agent response: %s\n", res.Reply.OutputText)
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "message to send (default: the machine-001 curing temperature question)")
	cmd.Flags().StringVar(&agentName, "agent", "", "agent name (default from AGENT_NAME)")
	return cmd
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that every tool endpoint answers the MCP handshake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := BuildToolRegistry(a.cfg)
			if err != nil {
				return a.fatal(err)
			}
			prober := &probe.Prober{
				ClientName:    "fault-diagnosis-agent",
				ClientVersion: version,
				Timeout:       a.cfg.HTTPClientTimeout,
			}
			results := prober.ProbeAll(cmd.Context(), tools.ProbeTargets(a.cfg.APIMKey))

			failed := 0
			for _, r := range results {
				if !r.OK() {
					failed++
					fmt.Fprintf(a.out, "❌ %s (%s): %v\n", r.Label, r.URL, r.Err)
					continue
				}
				fmt.Fprintf(a.out, "✅ %s: %s %s, protocol %s, %d tools: %s\n",
					r.Label, r.ServerName, r.ServerVersion, r.ProtocolVersion, len(r.Tools), strings.Join(r.ToolNames(), ", "))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tool endpoints failed", failed, len(results))
			}
			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the agent's diagnosis output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := diagnosis.SchemaJSON()
			if err != nil {
				return a.fatal(err)
			}
			if out == "" {
				_, err = fmt.Fprintln(a.out, string(raw))
				return err
			}
			if err := os.WriteFile(out, append(raw, '\n'), 0o644); err != nil {
				return a.fatal(fmt.Errorf("write schema: %w", err))
			}
			slog.Info("schema written", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the schema to this file instead of stdout")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded provisioning runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := store.Open(ctx, store.Options{DSN: a.cfg.DBDSN, AutoMigrate: a.cfg.DBAutoMigrate, Verbose: a.verbose})
			if err != nil {
				return a.fatal(err)
			}
			defer s.Close()

			runs, err := s.Recent(ctx, limit)
			if err != nil {
				return a.fatal(err)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tRUN\tAGENT\tVERSION\tMODEL\tSTATUS\tCONTRACT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					r.CreatedAt.Format(time.RFC3339), r.RunID, r.AgentName, r.AgentVersion, r.Model, r.Status, r.ContractValid)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultLimit, "number of runs to show")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var agentName string
	cmd := &cobra.Command{
		Use:   "delete VERSION",
		Short: "Delete one version of the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newFoundryClient(cmd.Context())
			if err != nil {
				return a.fatal(err)
			}
			if agentName == "" {
				agentName = a.cfg.AgentName
			}
			res, err := client.DeleteAgentVersion(cmd.Context(), agentName, args[0])
			if err != nil {
				return a.fatal(err)
			}
			if !res.Deleted {
				return a.fatal(fmt.Errorf("agent %s version %s was not deleted", agentName, args[0]))
			}
			fmt.Fprintf(a.out, "🗑️  Deleted %s version %s\n", agentName, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "agent name (default from AGENT_NAME)")
	return cmd
}

func (a *app) newFoundryClient(ctx context.Context) (*foundry.Client, error) {
	if err := a.cfg.RequireProject(); err != nil {
		return nil, err
	}
	ts, err := foundry.NewTokenSource(ctx, a.cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	return foundry.NewClient(foundry.Config{
		Endpoint:   a.cfg.ProjectEndpoint,
		APIVersion: a.cfg.APIVersion,
		HTTPClient: foundry.NewHTTPClient(ctx, ts, a.cfg.HTTPClientTimeout),
		MaxRetries: a.cfg.MaxRetries,
	})
}

// newProvisioner wires the client, tools, validator and run history. A history
// database that cannot be opened is logged and skipped.
func (a *app) newProvisioner(ctx context.Context) (*Provisioner, func(), error) {
	// 1. Project client
	client, err := a.newFoundryClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	// 2. Tools from the config file, else from env
	tools, err := BuildToolRegistry(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	// 3. Output contract
	validator, err := diagnosis.NewValidator()
	if err != nil {
		return nil, nil, err
	}

	// 4. Run history (optional)
	var recorder store.Recorder = store.Nop{}
	closeFn := func() {}
	if a.cfg.DBDSN != "" {
		s, err := store.Open(ctx, store.Options{DSN: a.cfg.DBDSN, AutoMigrate: a.cfg.DBAutoMigrate, Verbose: a.verbose})
		switch {
		case err != nil:
			slog.Warn("run history disabled", "err", err)
		default:
			recorder = s
			closeFn = func() {
				if err := s.Close(); err != nil {
					slog.Debug("close history db", "err", err)
				}
			}
		}
	}
	return NewProvisioner(a.cfg, client, tools, recorder, validator, a.out), closeFn, nil
}
