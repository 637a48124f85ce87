// Package probe checks that the agent's tool endpoints speak MCP before the agent
// is pointed at them.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

// Target is one MCP endpoint to check.
type Target struct {
	Label   string
	URL     string
	Headers map[string]string
}

// Result is what a probe learned about a target.
type Result struct {
	Label           string
	URL             string
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	Tools           []mcp.Tool
	Err             error
}

// OK reports whether the endpoint initialized and listed its tools.
func (r Result) OK() bool { return r.Err == nil }

// ToolNames lists the tool names in server order.
func (r Result) ToolNames() []string {
	names := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		names[i] = t.Name
	}
	return names
}

// Prober runs MCP handshakes against tool endpoints.
type Prober struct {
	ClientName    string
	ClientVersion string
	Timeout       time.Duration
	// HTTPClient is optional; when nil the transport builds its own.
	HTTPClient *http.Client
}

// Probe initializes a session with t and lists its tools.
func (p *Prober) Probe(ctx context.Context, t Target) Result {
	res := Result{Label: t.Label, URL: t.URL}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var opts []transport.StreamableHTTPCOption
	if len(t.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(t.Headers))
	}
	if p.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(p.HTTPClient))
	}

	c, err := client.NewStreamableHttpClient(t.URL, opts...)
	if err != nil {
		res.Err = fmt.Errorf("create mcp client: %w", err)
		return res
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		res.Err = fmt.Errorf("start mcp transport: %w", err)
		return res
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: p.ClientName, Version: p.ClientVersion}
	info, err := c.Initialize(ctx, initReq)
	if err != nil {
		res.Err = fmt.Errorf("initialize: %w", err)
		return res
	}
	res.ServerName = info.ServerInfo.Name
	res.ServerVersion = info.ServerInfo.Version
	res.ProtocolVersion = info.ProtocolVersion

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		res.Err = fmt.Errorf("list tools: %w", err)
		return res
	}
	res.Tools = tools.Tools

	slog.Debug("probed mcp endpoint", "label", t.Label, "server", res.ServerName, "tools", len(res.Tools))
	return res
}

// ProbeAll probes every target concurrently. Results keep the order of targets;
// a failing target never stops the others.
func (p *Prober) ProbeAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = p.Probe(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
