// Package diagnosis owns the output contract of the Fault Diagnosis Agent: the JSON
// Schema handed to the model and the check run against smoke-test answers.
package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/uslanozan/fault-diagnosis-agent/models"
)

// validationDraft is the newest draft gojsonschema understands. The contract only
// uses keywords that mean the same thing in draft-07 and 2020-12.
const validationDraft = "http://json-schema.org/draft-07/schema#"

// ErrNotJSON is returned when the answer is not a single JSON object.
var ErrNotJSON = errors.New("answer is not a JSON object")

// Schema reflects the contract from models.FaultDiagnosis.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&models.FaultDiagnosis{})
	s.Title = "FaultDiagnosis"
	return s
}

// SchemaJSON renders the contract with two-space indentation.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

// Result is the verdict of Validate.
type Result struct {
	Valid     bool
	Errors    []string
	Diagnosis *models.FaultDiagnosis
}

// Summary joins the schema errors for a single log line.
func (r Result) Summary() string {
	if r.Valid {
		return "ok"
	}
	return strings.Join(r.Errors, "; ")
}

// Validator checks agent answers against a compiled contract.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the contract once.
func NewValidator() (*Validator, error) {
	s := Schema()
	s.Version = validationDraft
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal contract: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile contract: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks one agent answer. The answer must be exactly one JSON object;
// surrounding whitespace is tolerated, Markdown fences are not.
func (v *Validator) Validate(answer string) (Result, error) {
	text := strings.TrimSpace(answer)
	if !strings.HasPrefix(text, "{") || !json.Valid([]byte(text)) {
		return Result{}, ErrNotJSON
	}

	res, err := v.schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return Result{}, fmt.Errorf("validate answer: %w", err)
	}

	out := Result{Valid: res.Valid()}
	for _, desc := range res.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	if !out.Valid {
		return out, nil
	}

	var d models.FaultDiagnosis
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Result{}, fmt.Errorf("decode answer: %w", err)
	}
	out.Diagnosis = &d
	return out, nil
}
