package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type apimKeyCtx struct{}

// Threshold is the warning/critical band of one metric.
type Threshold struct {
	Metric   string  `json:"metric"`
	Unit     string  `json:"unit"`
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// MaintenanceRecord is one past intervention on a machine.
type MaintenanceRecord struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Technician  string    `json:"technician"`
}

// Machine is what the service knows about one asset.
type Machine struct {
	ID          string              `json:"id"`
	Type        string              `json:"machineType"`
	Line        string              `json:"line"`
	Thresholds  []Threshold         `json:"thresholds"`
	Maintenance []MaintenanceRecord `json:"maintenanceHistory"`
}

// MachineStore is an in-memory stand-in for the machine database.
type MachineStore struct {
	mu       sync.RWMutex
	machines map[string]Machine
}

func NewMachineStore(machines ...Machine) *MachineStore {
	s := &MachineStore{machines: make(map[string]Machine, len(machines))}
	for _, m := range machines {
		s.machines[m.ID] = m
	}
	return s
}

func (s *MachineStore) Get(id string) (Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[id]
	return m, ok
}

func (s *MachineStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.machines))
	for id := range s.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sampleMachines() []Machine {
	day := func(s string) time.Time {
		t, _ := time.Parse(time.DateOnly, s)
		return t
	}
	return []Machine{
		{
			ID:   "machine-001",
			Type: "tire_curing_press",
			Line: "curing-line-1",
			Thresholds: []Threshold{
				{Metric: "curing_temperature", Unit: "°C", Warning: 178, Critical: 185},
				{Metric: "curing_pressure", Unit: "bar", Warning: 26, Critical: 30},
			},
			Maintenance: []MaintenanceRecord{
				{Date: day("2025-11-03"), Type: "preventive", Description: "Bladder replaced", Technician: "T-114"},
				{Date: day("2025-12-19"), Type: "corrective", Description: "Heating platen thermocouple recalibrated", Technician: "T-087"},
			},
		},
		{
			ID:   "machine-002",
			Type: "banbury_mixer",
			Line: "mixing-line-2",
			Thresholds: []Threshold{
				{Metric: "mixing_temperature", Unit: "°C", Warning: 160, Critical: 170},
				{Metric: "motor_current", Unit: "A", Warning: 420, Critical: 480},
			},
			Maintenance: []MaintenanceRecord{
				{Date: day("2025-10-21"), Type: "preventive", Description: "Rotor seals inspected", Technician: "T-051"},
			},
		},
	}
}

// requireKey rejects calls without the configured subscription key. An empty
// key disables the check.
func requireKey(key string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if key == "" {
			return nil
		}
		got, _ := ctx.Value(apimKeyCtx{}).(string)
		if got != key {
			return fmt.Errorf("access denied due to missing or invalid subscription key")
		}
		return nil
	}
}

// newMCPServer exposes store as the machine-data MCP tools.
func newMCPServer(store *MachineStore, apimKey string) *server.MCPServer {
	s := server.NewMCPServer("machine-data", "0.1.0", server.WithToolCapabilities(false))
	check := requireKey(apimKey)

	machineTool := func(name, desc string, view func(Machine) any) {
		s.AddTool(
			mcp.NewTool(name,
				mcp.WithDescription(desc),
				mcp.WithString("machine_id", mcp.Required(), mcp.Description("Machine identifier, e.g. machine-001")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				if err := check(ctx); err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				id, err := req.RequireString("machine_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				m, ok := store.Get(id)
				if !ok {
					return mcp.NewToolResultError(fmt.Sprintf("machine %q not found", id)), nil
				}
				return jsonResult(view(m))
			},
		)
	}

	machineTool("get_machine", "Machine type, line and alert thresholds",
		func(m Machine) any {
			return struct {
				ID         string      `json:"id"`
				Type       string      `json:"machineType"`
				Line       string      `json:"line"`
				Thresholds []Threshold `json:"thresholds"`
			}{m.ID, m.Type, m.Line, m.Thresholds}
		})
	machineTool("get_maintenance_history", "Past maintenance interventions, newest first",
		func(m Machine) any {
			history := make([]MaintenanceRecord, len(m.Maintenance))
			copy(history, m.Maintenance)
			sort.Slice(history, func(i, j int) bool { return history[i].Date.After(history[j].Date) })
			return history
		})

	s.AddTool(
		mcp.NewTool("list_machines", mcp.WithDescription("Identifiers of all known machines")),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := check(ctx); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(store.IDs())
		},
	)
	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
