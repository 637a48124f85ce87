package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_RanksCuringArticleFirst(t *testing.T) {
	kb := NewKnowledgeBase(sampleArticles()...)

	hits := kb.Search("machine-001 has curing temperature reading of 179.2°C that exceeds warning threshold of 178°C", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "curing_temperature_excessive", hits[0].FaultType)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Contains(t, hits[0].LikelyCauses, "Heating element malfunction")
}

func TestSearch_NoMatch(t *testing.T) {
	kb := NewKnowledgeBase(sampleArticles()...)
	assert.Empty(t, kb.Search("conveyor belt misalignment", 3))
	assert.Empty(t, kb.Search("", 3))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"mixing", "temperature", "excessive"}, tokenize("mixing_temperature_excessive Mixing"))
}

func TestKnowledgeBaseRetrieveTool(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newMCPServer(NewKnowledgeBase(sampleArticles()...)))
	t.Cleanup(ts.Close)

	ctx := context.Background()
	c, err := client.NewStreamableHttpClient(ts.URL + endpointPath("machine-kb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = "knowledge_base_retrieve"
	req.Params.Arguments = map[string]any{"query": "banbury mixing temperature", "top": 1}
	res, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)

	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var body struct {
		Results []Hit `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "kb-mixing-001", body.Results[0].ID)
}
