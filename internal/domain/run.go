package domain

import (
	"encoding/json"
	"time"
)

// DefaultMaxActions is the per-plan action limit when a plan does not set one.
const DefaultMaxActions = 40

// DefaultTaskName names runs created from plans without a task name.
const DefaultTaskName = "Desktop Run"

// SafetyConfig controls approval gating for a plan.
type SafetyConfig struct {
	RequireApprovalFor []RiskTag    `json:"require_approval_for,omitempty"`
	MaxActions         int          `json:"max_actions,omitempty"`
	ApprovalMode       ApprovalMode `json:"approval_mode,omitempty"`
}

// Mode returns the approval mode, defaulting to per_run.
func (s SafetyConfig) Mode() ApprovalMode {
	if s.ApprovalMode == ApprovalModePerStep {
		return ApprovalModePerStep
	}
	return ApprovalModePerRun
}

// ApprovalTags returns the configured tags or the default set.
func (s SafetyConfig) ApprovalTags() []RiskTag {
	if len(s.RequireApprovalFor) == 0 {
		return DefaultRequireApprovalFor()
	}
	return s.RequireApprovalFor
}

// EffectiveMaxActions clamps the plan limit to the global ceiling.
func (s SafetyConfig) EffectiveMaxActions(ceiling int) int {
	if ceiling <= 0 {
		ceiling = DefaultMaxActions
	}
	limit := s.MaxActions
	if limit <= 0 {
		limit = ceiling
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

// Plan is an ordered list of actions plus its safety configuration.
type Plan struct {
	TaskName string       `json:"task_name,omitempty"`
	Actions  []RawAction  `json:"actions"`
	Safety   SafetyConfig `json:"safety"`
}

// RiskAssessment is the plan-level classification.
type RiskAssessment struct {
	TaskName         string    `json:"task_name"`
	RequiresApproval bool      `json:"requires_approval"`
	RiskTags         []RiskTag `json:"risk_tags"`
	NewApps          []string  `json:"new_apps"`
	MaxActions       int       `json:"max_actions"`
	TotalActions     int       `json:"total_actions"`
	Reasons          []string  `json:"reasons"`
	Blocked          bool      `json:"blocked,omitempty"`
	BlockReasons     []string  `json:"block_reasons,omitempty"`
}

// StepAssessment is the classification of a single action.
type StepAssessment struct {
	RequiresApproval bool      `json:"requires_approval"`
	Tags             []RiskTag `json:"tags"`
	Reasons          []string  `json:"reasons"`
	NewApp           string    `json:"new_app,omitempty"`
	Blocked          bool      `json:"blocked,omitempty"`
	BlockReason      string    `json:"block_reason,omitempty"`
}

// PendingApproval records where a suspended run resumes.
type PendingApproval struct {
	ApprovalID string    `json:"approval_id"`
	StepIndex  int       `json:"step_index"`
	Action     RawAction `json:"action"`
	Reasons    []string  `json:"reasons,omitempty"`
}

// Run is one stateful execution attempt of a plan.
type Run struct {
	ID              string           `json:"id"`
	Status          RunStatus        `json:"status"`
	TaskName        string           `json:"task_name"`
	Actions         []RawAction      `json:"actions"`
	Safety          SafetyConfig     `json:"safety"`
	WorkspaceID     string           `json:"workspace_id"`
	CreatedBy       string           `json:"created_by,omitempty"`
	Timeline        []TimelineEntry  `json:"timeline"`
	Artifacts       []Artifact       `json:"artifacts"`
	PendingApproval *PendingApproval `json:"pending_approval,omitempty"`
	StopRequested   bool             `json:"stop_requested"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
}

// TimelineEntry is the record of one step.
type TimelineEntry struct {
	Step       int            `json:"step"`
	Type       string         `json:"type"`
	Status     TimelineStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Error      string         `json:"error,omitempty"`
	Action     RawAction      `json:"action"`
}

// Artifact is a file produced by a step.
type Artifact struct {
	Type      ArtifactType `json:"type"`
	File      string       `json:"file"`
	Step      int          `json:"step"`
	CreatedAt time.Time    `json:"created_at"`
}

// RunUpdate carries the optional fields written with a status change.
type RunUpdate struct {
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      *string
}

// RunContext identifies who started a run and for which workspace.
type RunContext struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Workspace returns the workspace id, defaulting to "default".
func (c RunContext) Workspace() string {
	if c.WorkspaceID == "" {
		return "default"
	}
	return c.WorkspaceID
}

// ExecResult is what an executor reports for one action.
type ExecResult struct {
	OK           bool         `json:"ok"`
	Artifact     string       `json:"artifact,omitempty"`
	ArtifactType ArtifactType `json:"artifactType,omitempty"`
	Raw          string       `json:"raw,omitempty"`
}

// Event is a persisted run event, streamed to subscribers.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
