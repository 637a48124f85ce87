package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructions_Render(t *testing.T) {
	out, err := Instructions(InstructionData{
		Tools: []ToolLine{
			{Label: "Machine data", Purpose: "fetch machine information"},
			{Label: "MCP Knowledge Base", Purpose: "fetch knowledge base information for possible causes"},
		},
		Severities:       []string{"Low", "Medium", "High", "Critical", "Unknown"},
		UnknownRootCause: "I don't know",
	})
	require.NoError(t, err)

	for _, want := range []string{
		"You are a Fault Diagnosis Agent",
		"- Machine data: fetch machine information\n- MCP Knowledge Base:",
		`one of "Low", "Medium", "High", "Critical", or "Unknown".`,
		`"RootCause" to "I don't know"`,
		"MostLikelyRootCauses",
		"You must never answer from your own knowledge",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "The same contract as JSON Schema")
	assert.NotContains(t, out, "<no value>")
}

func TestInstructions_WithSchema(t *testing.T) {
	out, err := Instructions(InstructionData{
		Tools:            []ToolLine{{Label: "Machine data", Purpose: "x"}},
		Severities:       []string{"Low"},
		UnknownRootCause: "I don't know",
		Schema:           `{"type": "object"}`,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "The same contract as JSON Schema:\n{\"type\": \"object\"}")
	assert.Contains(t, out, `one of "Low".`)
}

func TestInstructions_NoTools(t *testing.T) {
	_, err := Instructions(InstructionData{})
	assert.Error(t, err)
}

func TestSmokeTestMessage(t *testing.T) {
	msg := SmokeTestMessage()
	assert.True(t, strings.HasPrefix(msg, "Hello, what can the issue be"))
	assert.Contains(t, msg, "machine-001")
	assert.Contains(t, msg, "179.2°C")
	assert.Equal(t, strings.TrimSpace(msg), msg)
}

func TestJoinOr(t *testing.T) {
	assert.Equal(t, "", joinOr(nil))
	assert.Equal(t, "a", joinOr([]string{"a"}))
	assert.Equal(t, "a or b", joinOr([]string{"a", "b"}))
	assert.Equal(t, "a, b, or c", joinOr([]string{"a", "b", "c"}))
}
