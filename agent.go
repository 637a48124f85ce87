package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/uslanozan/fault-diagnosis-agent/models"
	"github.com/uslanozan/fault-diagnosis-agent/probe"
	"github.com/uslanozan/fault-diagnosis-agent/prompts"
)

const (
	machineDataLabel   = "machine-data"
	machineWikiLabel   = "machine-wiki"
	knowledgeBaseQuery = "2025-11-01-preview"
	apimKeyHeader      = "Ocp-Apim-Subscription-Key"
)

var (
	ErrNoTools        = errors.New("no tools configured")
	ErrDuplicateTool  = errors.New("duplicate tool label")
	ErrMissingToolURL = errors.New("tool has no server url")
	ErrInvalidTool    = errors.New("invalid tool")
)

// ToolRegistry keeps the agent's MCP tools in declaration order. The order is
// sent to the platform unchanged.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   []models.MCPTool
	byLabel map[string]int
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{byLabel: make(map[string]int)}
}

// Register validates t and appends it.
func (r *ToolRegistry) Register(t models.MCPTool) error {
	t.ServerLabel = strings.TrimSpace(t.ServerLabel)
	t.ServerURL = strings.TrimSpace(t.ServerURL)
	if t.ServerLabel == "" {
		return fmt.Errorf("%w: empty server_label", ErrInvalidTool)
	}
	if t.ServerURL == "" {
		return fmt.Errorf("%w: %s", ErrMissingToolURL, t.ServerLabel)
	}
	if t.RequireApproval == "" {
		t.RequireApproval = models.ApprovalNever
	}
	if !t.RequireApproval.Valid() {
		return fmt.Errorf("%w: %s: require_approval %q", ErrInvalidTool, t.ServerLabel, t.RequireApproval)
	}
	if t.Type == "" {
		t.Type = "mcp"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byLabel[t.ServerLabel]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.ServerLabel)
	}
	r.byLabel[t.ServerLabel] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

func (r *ToolRegistry) Get(label string) (models.MCPTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byLabel[label]
	if !ok {
		return models.MCPTool{}, false
	}
	return r.tools[i], true
}

func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Tools returns a copy in declaration order.
func (r *ToolRegistry) Tools() []models.MCPTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.MCPTool, len(r.tools))
	copy(out, r.tools)
	return out
}

// ToolLines describes the tools for the instruction template.
func (r *ToolRegistry) ToolLines() []prompts.ToolLine {
	tools := r.Tools()
	lines := make([]prompts.ToolLine, 0, len(tools))
	for _, t := range tools {
		title := t.Title
		if title == "" {
			title = t.ServerLabel
		}
		purpose := t.Purpose
		if purpose == "" {
			purpose = "MCP tools served at " + t.ServerLabel
		}
		lines = append(lines, prompts.ToolLine{Label: title, Purpose: purpose})
	}
	return lines
}

// ProbeTargets maps the tools to probe targets. The APIM subscription key only
// goes to the machine-data endpoint, which sits behind API Management.
func (r *ToolRegistry) ProbeTargets(apimKey string) []probe.Target {
	tools := r.Tools()
	targets := make([]probe.Target, 0, len(tools))
	for _, t := range tools {
		target := probe.Target{Label: t.ServerLabel, URL: t.ServerURL}
		if t.ServerLabel == machineDataLabel && apimKey != "" {
			target.Headers = map[string]string{apimKeyHeader: apimKey}
		}
		targets = append(targets, target)
	}
	return targets
}

// DefaultTools are the machine-data service and the machine knowledge base.
func DefaultTools(cfg *Config) []models.MCPTool {
	return []models.MCPTool{
		{
			ServerLabel:         machineDataLabel,
			ServerURL:           cfg.MachineMCPURL,
			RequireApproval:     models.ApprovalNever,
			ProjectConnectionID: "machine-data-connection",
			Title:               "Machine data",
			Purpose:             "fetch machine information such as maintenance history and type for a particular machine id",
		},
		{
			ServerLabel:         machineWikiLabel,
			ServerURL:           knowledgeBaseURL(cfg.SearchEndpoint, cfg.KnowledgeBase),
			RequireApproval:     models.ApprovalNever,
			ProjectConnectionID: "machine-wiki-connection",
			Title:               "MCP Knowledge Base",
			Purpose:             "fetch knowledge base information for possible causes",
		},
	}
}

// knowledgeBaseURL builds the MCP endpoint of a search knowledge base. It
// returns "" when the search endpoint is not configured.
func knowledgeBaseURL(searchEndpoint, kb string) string {
	searchEndpoint = strings.TrimSpace(searchEndpoint)
	if searchEndpoint == "" {
		return ""
	}
	if !strings.HasSuffix(searchEndpoint, "/") {
		searchEndpoint += "/"
	}
	return searchEndpoint + "knowledgebases/" + url.PathEscape(kb) + "/mcp?api-version=" + knowledgeBaseQuery
}

// toolsFile is the layout of the tools config file.
type toolsFile struct {
	Agent struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Model       string `yaml:"model"`
	} `yaml:"agent"`
	Tools []models.MCPTool `yaml:"tools"`
}

// LoadToolsFromConfig reads a YAML tools file into registry. String values may
// reference environment variables as ${VAR}. Agent overrides found in the file
// are applied to cfg.
func LoadToolsFromConfig(registry *ToolRegistry, cfg *Config, path string) error {
	slog.Info("loading tools config", "path", path)

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("read tools config %s: %w", path, err)
	}
	var tf toolsFile
	if err := k.UnmarshalWithConf("", &tf, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("parse tools config %s: %w", path, err)
	}
	if len(tf.Tools) == 0 {
		return fmt.Errorf("%w in %s", ErrNoTools, path)
	}

	if v := os.ExpandEnv(tf.Agent.Name); v != "" {
		cfg.AgentName = v
	}
	if v := os.ExpandEnv(tf.Agent.Model); v != "" {
		cfg.Model = v
	}
	if v := os.ExpandEnv(tf.Agent.Description); v != "" {
		cfg.AgentDescription = v
	}

	for _, t := range tf.Tools {
		t.ServerLabel = os.ExpandEnv(t.ServerLabel)
		t.ServerURL = os.ExpandEnv(t.ServerURL)
		t.ProjectConnectionID = os.ExpandEnv(t.ProjectConnectionID)
		t.RequireApproval = models.ApprovalPolicy(os.ExpandEnv(string(t.RequireApproval)))
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("tools config %s: %w", path, err)
		}
	}
	slog.Debug("tools loaded", "count", registry.Len())
	return nil
}

// BuildToolRegistry uses the tools file when one is configured and the
// environment defaults otherwise.
func BuildToolRegistry(cfg *Config) (*ToolRegistry, error) {
	registry := NewToolRegistry()
	if cfg.ToolsConfigFile != "" {
		if err := LoadToolsFromConfig(registry, cfg, cfg.ToolsConfigFile); err != nil {
			return nil, err
		}
		return registry, nil
	}
	for _, t := range DefaultTools(cfg) {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
