package domain

import (
	"encoding/json"
	"time"
)

// Approval represents a human approval request for a suspended step.
type Approval struct {
	ApprovalID string          `json:"approval_id"`
	RunID      string          `json:"run_id"`
	StepIndex  int             `json:"step_index"`
	ActionType string          `json:"action_type"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     ApprovalStatus  `json:"status"`
	CreatedBy  string          `json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
	DecidedBy  string          `json:"decided_by,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// ApprovalRequest is what the controller hands to the approval gateway.
type ApprovalRequest struct {
	RunID      string
	StepIndex  int
	ActionType string
	Summary    string
	// Payload must already be redacted.
	Payload   map[string]any
	CreatedBy string
}

// KillSwitchState is the persisted kill switch flag.
type KillSwitchState struct {
	Enabled     bool       `json:"enabled"`
	Reason      string     `json:"reason,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ActivatedBy string     `json:"activated_by,omitempty"`
}
