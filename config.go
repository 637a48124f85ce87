// File: config.go

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/uslanozan/fault-diagnosis-agent/foundry"
)

const (
	defaultAgentName        = "FaultDiagnosisAgent"
	defaultAgentDescription = "Fault diagnosis agent"
	defaultModel            = "gpt-4.1"
	defaultKnowledgeBase    = "machine-kb"
	defaultTimeoutSeconds   = 60
)

// ErrMissingProjectEndpoint is returned when AZURE_AI_PROJECT_ENDPOINT is empty.
var ErrMissingProjectEndpoint = errors.New("AZURE_AI_PROJECT_ENDPOINT is not set")

// Config holds everything read from the environment.
type Config struct {
	ProjectEndpoint   string
	APIVersion        string
	AgentName         string
	AgentDescription  string
	Model             string
	SearchEndpoint    string
	KnowledgeBase     string
	MachineMCPURL     string
	APIMKey           string
	ToolsConfigFile   string
	HTTPClientTimeout time.Duration
	MaxRetries        int
	DBDSN             string
	DBAutoMigrate     bool
	LogLevel          string
	Credential        foundry.CredentialConfig
}

// loadEnvFile loads path into the process environment, overriding variables that
// are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			slog.Debug("no env file", "path", path)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Debug("env file loaded", "path", path)
	return nil
}

// NewConfig reads the environment. Only numeric settings are validated here;
// the project endpoint is checked by RequireProject so that commands that never
// touch the project (schema, probe, history) still run without it.
func NewConfig() (*Config, error) {
	timeout, err := intEnv("HTTP_CLIENT_TIMEOUT_SECONDS", defaultTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("HTTP_CLIENT_TIMEOUT_SECONDS must be positive, got %d", timeout)
	}
	retries, err := intEnv("MAX_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must not be negative, got %d", retries)
	}
	autoMigrate, err := boolEnv("DB_AUTO_MIGRATE")
	if err != nil {
		return nil, err
	}

	return &Config{
		ProjectEndpoint:   strings.TrimSpace(os.Getenv("AZURE_AI_PROJECT_ENDPOINT")),
		APIVersion:        envOr("AZURE_AI_API_VERSION", foundry.DefaultAPIVersion),
		AgentName:         envOr("AGENT_NAME", defaultAgentName),
		AgentDescription:  defaultAgentDescription,
		Model:             envOr("MODEL_DEPLOYMENT_NAME", defaultModel),
		SearchEndpoint:    os.Getenv("SEARCH_SERVICE_ENDPOINT"),
		KnowledgeBase:     envOr("KNOWLEDGE_BASE_NAME", defaultKnowledgeBase),
		MachineMCPURL:     os.Getenv("MACHINE_MCP_SERVER_ENDPOINT"),
		APIMKey:           os.Getenv("APIM_SUBSCRIPTION_KEY"),
		ToolsConfigFile:   os.Getenv("AGENT_TOOLS_CONFIG"),
		HTTPClientTimeout: time.Duration(timeout) * time.Second,
		MaxRetries:        retries,
		DBDSN:             os.Getenv("DB_DSN"),
		DBAutoMigrate:     autoMigrate,
		LogLevel:          os.Getenv("LOG_LEVEL"),
		Credential: foundry.CredentialConfig{
			AccessToken:   os.Getenv("AZURE_AI_ACCESS_TOKEN"),
			TenantID:      os.Getenv("AZURE_TENANT_ID"),
			ClientID:      os.Getenv("AZURE_CLIENT_ID"),
			ClientSecret:  os.Getenv("AZURE_CLIENT_SECRET"),
			AuthorityHost: os.Getenv("AZURE_AUTHORITY_HOST"),
		},
	}, nil
}

// RequireProject fails when the project endpoint is missing.
func (c *Config) RequireProject() error {
	if c.ProjectEndpoint == "" {
		return ErrMissingProjectEndpoint
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s is not a boolean: %w", key, err)
	}
	return b, nil
}
