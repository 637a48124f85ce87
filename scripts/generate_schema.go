// scripts/generate_schema.go writes the JSON Schemas checked into schemas/.
//
//	go run ./scripts
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/uslanozan/fault-diagnosis-agent/diagnosis"
	"github.com/uslanozan/fault-diagnosis-agent/models"
)

// AgentDTOs groups the wire types exchanged with the agents control plane.
type AgentDTOs struct {
	CreateRequest models.CreateAgentVersionRequest `json:"create_request"`
	Version       models.AgentVersion              `json:"version"`
	Reference     models.AgentReference            `json:"agent_reference"`
}

const outputDir = "schemas"

func main() {
	contract, err := diagnosis.SchemaJSON()
	if err != nil {
		fail(err)
	}

	r := new(jsonschema.Reflector)
	r.ExpandedStruct = true
	dtos, err := json.MarshalIndent(r.Reflect(&AgentDTOs{}), "", "  ")
	if err != nil {
		fail(err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fail(err)
	}
	for name, data := range map[string][]byte{
		"fault_diagnosis.json":  contract,
		"agent_definition.json": dtos,
	} {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			fail(err)
		}
		abs, _ := filepath.Abs(path)
		fmt.Println("✅ Schema written:", abs)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "❌ schema generation failed:", err)
	os.Exit(1)
}
