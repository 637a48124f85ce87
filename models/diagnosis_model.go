package models

import (
	"time"

	"github.com/invopop/jsonschema"
)

// Severity grades a diagnosed fault.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
	SeverityUnknown  Severity = "Unknown"
)

// UnknownRootCause is what the agent answers when neither tool grounds a diagnosis.
const UnknownRootCause = "I don't know"

// Severities lists the accepted grades, mildest first.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityUnknown}
}

func (Severity) JSONSchema() *jsonschema.Schema {
	all := Severities()
	enum := make([]any, len(all))
	for i, s := range all {
		enum[i] = string(s)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// DiagnosisMetadata carries the evidence behind a diagnosis. Any key is allowed
// but MostLikelyRootCauses must always be present.
type DiagnosisMetadata map[string]any

func (DiagnosisMetadata) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("MostLikelyRootCauses", &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "string"},
		Description: "Likely Causes list of the matched fault type, copied from the knowledge base.",
	})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"MostLikelyRootCauses"},
	}
}

// FaultDiagnosis is the single JSON object the agent must answer with.
// Property names are case-sensitive.
type FaultDiagnosis struct {
	MachineID  string            `json:"MachineId" jsonschema:"description=Machine identifier from the input,example=machine-001"`
	FaultType  string            `json:"FaultType" jsonschema:"description=Fault Type field of the matched knowledge base issue"`
	RootCause  string            `json:"RootCause" jsonschema:"description=Single most likely root cause"`
	Severity   Severity          `json:"Severity"`
	DetectedAt time.Time         `json:"DetectedAt" jsonschema:"description=ISO 8601 date-time of the detection"`
	Metadata   DiagnosisMetadata `json:"Metadata"`
}

// Ungrounded reports whether the agent declined to diagnose.
func (d FaultDiagnosis) Ungrounded() bool {
	return d.RootCause == UnknownRootCause
}
