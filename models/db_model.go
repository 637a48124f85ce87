package models

import "time"

// RunStatus is the outcome of one provisioning run.
type RunStatus string

const (
	RunCreated     RunStatus = "created"
	RunFailed      RunStatus = "failed"
	RunSmokeFailed RunStatus = "smoke_failed"
	RunVerified    RunStatus = "verified"
)

// ProvisioningRun is the history row written after every provision command.
type ProvisioningRun struct {
	ID            uint      `gorm:"primaryKey;column:id"`
	RunID         string    `gorm:"column:run_id;size:36;uniqueIndex"`
	AgentName     string    `gorm:"column:agent_name;size:128;index"`
	AgentVersion  string    `gorm:"column:agent_version;size:32"`
	AgentID       string    `gorm:"column:agent_id;size:192"`
	Model         string    `gorm:"column:model;size:128"`
	Status        RunStatus `gorm:"column:status;size:16"`
	SmokeOutput   string    `gorm:"column:smoke_output;type:text"`
	ContractValid bool      `gorm:"column:contract_valid"`
	Error         string    `gorm:"column:error;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}
