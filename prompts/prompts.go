// Package prompts embeds the agent instruction template and the smoke-test message.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed fault_diagnosis.tmpl
var faultDiagnosis string

//go:embed smoke_test.txt
var smokeTest string

var faultDiagnosisTmpl = template.Must(template.New("fault_diagnosis").Parse(faultDiagnosis))

// ToolLine describes one tool in the instructions.
type ToolLine struct {
	Label   string
	Purpose string
}

// InstructionData feeds the instruction template.
type InstructionData struct {
	Tools            []ToolLine
	Severities       []string
	UnknownRootCause string
	// Schema is optional; when set it is appended to the output format section.
	Schema string
}

// Instructions renders the Fault Diagnosis Agent instructions.
func Instructions(data InstructionData) (string, error) {
	if len(data.Tools) == 0 {
		return "", fmt.Errorf("instructions need at least one tool")
	}
	quoted := make([]string, len(data.Severities))
	for i, s := range data.Severities {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	view := struct {
		InstructionData
		Severities string
	}{data, joinOr(quoted)}

	var buf bytes.Buffer
	if err := faultDiagnosisTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render instructions: %w", err)
	}
	return buf.String(), nil
}

// SmokeTestMessage is the question sent to a freshly provisioned agent.
func SmokeTestMessage() string {
	return strings.TrimSpace(smokeTest)
}

// joinOr renders ["a","b","c"] as "a, b, or c".
func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
