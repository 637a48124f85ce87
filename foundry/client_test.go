package foundry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uslanozan/fault-diagnosis-agent/models"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Auth    string
	Org     string
	Project string
	Body    map[string]any
}

// fakeProject serves the subset of the project API the client uses.
type fakeProject struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	reply    string
}

func (f *fakeProject) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query().Get("api-version"),
		Auth:    r.Header.Get("Authorization"),
		Org:     r.Header.Get("OpenAI-Organization"),
		Project: r.Header.Get("OpenAI-Project"),
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":{"code":"invalid_payload","message":"model not deployed"}}`)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/agents/FaultDiagnosisAgent/versions":
		_, _ = io.WriteString(w, `{"object":"agent.version","id":"FaultDiagnosisAgent:3","name":"FaultDiagnosisAgent","version":"3","created_at":1768566896}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/agents/FaultDiagnosisAgent/versions/3":
		_, _ = io.WriteString(w, `{"object":"agent.version.deleted","name":"FaultDiagnosisAgent","version":"3","deleted":true}`)
	case r.Method == http.MethodPost && r.URL.Path == "/openai/conversations":
		_, _ = io.WriteString(w, `{"id":"conv_123","object":"conversation","created_at":1768566900}`)
	case r.Method == http.MethodPost && r.URL.Path == "/openai/responses":
		_, _ = io.WriteString(w, responseBody(f.reply))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":"not_found","message":"no route"}}`)
	}
}

func (f *fakeProject) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeProject) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func responseBody(text string) string {
	out := map[string]any{
		"id":         "resp_1",
		"object":     "response",
		"created_at": 1768566901,
		"status":     "completed",
		"model":      "gpt-4.1",
		"output": []any{map[string]any{
			"type":   "message",
			"id":     "msg_1",
			"role":   "assistant",
			"status": "completed",
			"content": []any{map[string]any{
				"type":        "output_text",
				"text":        text,
				"annotations": []any{},
			}},
		}},
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func newTestClient(t *testing.T, fake *fakeProject) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ts, err := NewTokenSource(context.Background(), CredentialConfig{AccessToken: "test-token"})
	require.NoError(t, err)

	c, err := NewClient(Config{
		Endpoint:   srv.URL + "/",
		HTTPClient: NewHTTPClient(context.Background(), ts, 0),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	hc := &http.Client{}
	_, err := NewClient(Config{HTTPClient: hc})
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	_, err = NewClient(Config{Endpoint: "not a url", HTTPClient: hc})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoint: "ftp://example.com/api/projects/p", HTTPClient: hc})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoint: "https://example.com/api/projects/p", HTTPClient: hc, MaxRetries: -1})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoint: "https://example.com/api/projects/p"})
	assert.ErrorIs(t, err, ErrMissingHTTPClient)

	_, err = NewClient(Config{Endpoint: "https://example.com/api/projects/p", HTTPClient: hc})
	assert.NoError(t, err)
}

func TestNewClient_IgnoresOpenAIEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-leak")
	t.Setenv("OPENAI_ORG_ID", "org-leak")
	t.Setenv("OPENAI_PROJECT", "proj-leak")

	fake := &fakeProject{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	// A client that adds no credentials shows what the SDK itself sends.
	c, err := NewClient(Config{Endpoint: srv.URL, HTTPClient: &http.Client{}})
	require.NoError(t, err)

	_, err = c.CreateConversation(context.Background())
	require.NoError(t, err)

	req := fake.last()
	assert.Empty(t, req.Auth)
	assert.Empty(t, req.Org)
	assert.Empty(t, req.Project)
}

func TestCreateAgentVersion(t *testing.T) {
	fake := &fakeProject{}
	c := newTestClient(t, fake)

	av, err := c.CreateAgentVersion(context.Background(), "FaultDiagnosisAgent", models.CreateAgentVersionRequest{
		Description: "Fault diagnosis agent",
		Definition: models.PromptAgentDefinition{
			Model:        "gpt-4.1",
			Instructions: "be grounded",
			Tools: []models.MCPTool{{
				ServerLabel:         "machine-data",
				ServerURL:           "https://apim.example.com/machine/mcp",
				RequireApproval:     models.ApprovalNever,
				ProjectConnectionID: "machine-data-connection",
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "FaultDiagnosisAgent:3", av.ID)
	assert.Equal(t, "3", av.Version)

	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, DefaultAPIVersion, req.Query)
	assert.Equal(t, "Bearer test-token", req.Auth)
	assert.Equal(t, "Fault diagnosis agent", req.Body["description"])

	def := req.Body["definition"].(map[string]any)
	assert.Equal(t, "prompt", def["kind"])
	assert.Equal(t, "gpt-4.1", def["model"])
	tools := def["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "mcp", tool["type"])
	assert.Equal(t, "machine-data", tool["server_label"])
	assert.Equal(t, "never", tool["require_approval"])
	assert.Equal(t, "machine-data-connection", tool["project_connection_id"])
}

func TestCreateAgentVersion_APIError(t *testing.T) {
	fake := &fakeProject{status: http.StatusBadRequest}
	c := newTestClient(t, fake)

	_, err := c.CreateAgentVersion(context.Background(), "FaultDiagnosisAgent", models.CreateAgentVersionRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_payload", apiErr.Code)
	assert.Equal(t, "model not deployed", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "create agent version")
	assert.Equal(t, 1, fake.count())
}

func TestDeleteAgentVersion(t *testing.T) {
	fake := &fakeProject{}
	c := newTestClient(t, fake)

	res, err := c.DeleteAgentVersion(context.Background(), "FaultDiagnosisAgent", "3")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, http.MethodDelete, fake.last().Method)
}

func TestConversationAndAsk(t *testing.T) {
	fake := &fakeProject{reply: `{"MachineId":"machine-001"}`}
	c := newTestClient(t, fake)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "conv_123", conv.ID)
	assert.Equal(t, "/openai/conversations", fake.last().Path)

	reply, err := c.Ask(ctx, conv.ID, "FaultDiagnosisAgent", "what is wrong with machine-001?")
	require.NoError(t, err)
	assert.Equal(t, "conv_123", reply.ConversationID)
	assert.Equal(t, "resp_1", reply.ResponseID)
	assert.Equal(t, `{"MachineId":"machine-001"}`, reply.OutputText)

	req := fake.last()
	assert.Equal(t, "/openai/responses", req.Path)
	assert.Equal(t, DefaultAPIVersion, req.Query)
	assert.Equal(t, "conv_123", req.Body["conversation"])
	assert.Equal(t, "what is wrong with machine-001?", req.Body["input"])
	assert.Equal(t, map[string]any{"name": "FaultDiagnosisAgent", "type": "agent_reference"}, req.Body["agent"])
	assert.NotContains(t, req.Body, "model")
}

func TestAsk_EmptyReply(t *testing.T) {
	fake := &fakeProject{reply: ""}
	c := newTestClient(t, fake)

	reply, err := c.Ask(context.Background(), "conv_123", "FaultDiagnosisAgent", "hi")
	assert.ErrorIs(t, err, ErrEmptyReply)
	require.NotNil(t, reply)
	assert.Equal(t, "resp_1", reply.ResponseID)
}
