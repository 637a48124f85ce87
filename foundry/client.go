// Package foundry talks to an Azure AI Foundry project: the agents control plane
// and the OpenAI-compatible conversations/responses data plane.
package foundry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/uslanozan/fault-diagnosis-agent/models"
)

// DefaultAPIVersion is the Foundry API version the agent definitions target.
const DefaultAPIVersion = "2025-11-15-preview"

var (
	// ErrMissingEndpoint is returned when no project endpoint is configured.
	ErrMissingEndpoint = errors.New("project endpoint is not set")
	// ErrMissingHTTPClient is returned when Config carries no credential-signing client.
	ErrMissingHTTPClient = errors.New("http client is not set")
	// ErrEmptyReply is returned when the agent answered without any output text.
	ErrEmptyReply = errors.New("agent returned no output text")
)

// APIError is a non-2xx answer from the project.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s: %d: %s", e.Op, e.StatusCode, msg)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the project endpoint, e.g. https://<resource>.services.ai.azure.com/api/projects/<project>.
	Endpoint   string
	APIVersion string
	// HTTPClient is required and must attach credentials; see NewHTTPClient.
	HTTPClient *http.Client
	MaxRetries int
}

// Client is a thin wrapper over two openai-go clients sharing one HTTP client.
type Client struct {
	control openai.Client
	data    openai.Client
}

// NewClient validates cfg and builds the control and data plane clients.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse project endpoint: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("project endpoint %q must be an absolute http(s) url", cfg.Endpoint)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	if cfg.HTTPClient == nil {
		return nil, ErrMissingHTTPClient
	}
	// openai.NewClient picks up OPENAI_API_KEY, OPENAI_ORG_ID and OPENAI_PROJECT;
	// none of them may reach the project.
	common := []option.RequestOption{
		option.WithHeaderDel("Authorization"),
		option.WithHeaderDel("OpenAI-Organization"),
		option.WithHeaderDel("OpenAI-Project"),
		option.WithQuery("api-version", version),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	return &Client{
		control: openai.NewClient(append([]option.RequestOption{option.WithBaseURL(endpoint + "/")}, common...)...),
		data:    openai.NewClient(append([]option.RequestOption{option.WithBaseURL(endpoint + "/openai/")}, common...)...),
	}, nil
}

// CreateAgentVersion creates the agent if needed and adds a new version with def.
func (c *Client) CreateAgentVersion(ctx context.Context, name string, req models.CreateAgentVersionRequest) (*models.AgentVersion, error) {
	if req.Definition.Kind == "" {
		req.Definition.Kind = "prompt"
	}
	for i := range req.Definition.Tools {
		if req.Definition.Tools[i].Type == "" {
			req.Definition.Tools[i].Type = "mcp"
		}
	}

	var out models.AgentVersion
	slog.Debug("creating agent version", "agent", name, "model", req.Definition.Model, "tools", len(req.Definition.Tools))
	if err := c.control.Post(ctx, agentVersionsPath(name), req, &out); err != nil {
		return nil, apiError("create agent version", err)
	}
	return &out, nil
}

// DeleteAgentVersion removes one version of an agent.
func (c *Client) DeleteAgentVersion(ctx context.Context, name, version string) (*models.DeleteAgentVersionResponse, error) {
	var out models.DeleteAgentVersionResponse
	path := agentVersionsPath(name) + "/" + url.PathEscape(version)
	if err := c.control.Delete(ctx, path, nil, &out); err != nil {
		return nil, apiError("delete agent version", err)
	}
	return &out, nil
}

// CreateConversation opens an empty server-side conversation.
func (c *Client) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.data.Post(ctx, "conversations", map[string]any{}, &out); err != nil {
		return nil, apiError("create conversation", err)
	}
	return &out, nil
}

// Ask sends one user message to the named agent inside a conversation.
func (c *Client) Ask(ctx context.Context, conversationID, agentName, input string) (*models.Reply, error) {
	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	resp, err := c.data.Responses.New(ctx, params,
		option.WithJSONSet("conversation", conversationID),
		option.WithJSONSet("agent", models.NewAgentReference(agentName)),
	)
	if err != nil {
		return nil, apiError("create response", err)
	}

	reply := &models.Reply{ConversationID: conversationID, ResponseID: resp.ID, OutputText: resp.OutputText()}
	if reply.OutputText == "" {
		return reply, ErrEmptyReply
	}
	return reply, nil
}

func agentVersionsPath(name string) string {
	return "agents/" + url.PathEscape(name) + "/versions"
}

func apiError(op string, err error) error {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return &APIError{Op: op, StatusCode: oe.StatusCode, Code: oe.Code, Message: oe.Message}
	}
	return fmt.Errorf("%s: %w", op, err)
}
