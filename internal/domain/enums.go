// Package domain defines the core domain models for the desktop runner.
package domain

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusCreated          RunStatus = "created"
	RunStatusRunning          RunStatus = "running"
	RunStatusApprovalRequired RunStatus = "approval_required"
	RunStatusStopping         RunStatus = "stopping"
	RunStatusStopped          RunStatus = "stopped"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusError            RunStatus = "error"
)

// Terminal reports whether the status is a sink. No step executes after it.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusError, RunStatusStopped:
		return true
	}
	return false
}

// TerminalRunStatuses lists the sink states.
var TerminalRunStatuses = []RunStatus{RunStatusCompleted, RunStatusError, RunStatusStopped}

// RiskTag is a category attached to an action or a plan.
type RiskTag string

const (
	RiskTagLaunch     RiskTag = "launch"
	RiskTagInput      RiskTag = "input"
	RiskTagKey        RiskTag = "key"
	RiskTagMouse      RiskTag = "mouse"
	RiskTagClipboard  RiskTag = "clipboard"
	RiskTagScreenshot RiskTag = "screenshot"
	RiskTagNewApp     RiskTag = "new_app"
	RiskTagVision     RiskTag = "vision"
	RiskTagUIA        RiskTag = "uia"
	RiskTagUnknown    RiskTag = "unknown"
	// RiskTagPolicy marks actions the operator policy flagged for approval.
	RiskTagPolicy RiskTag = "policy"
)

// DefaultRequireApprovalFor is used when a plan does not name its own set.
func DefaultRequireApprovalFor() []RiskTag {
	return []RiskTag{
		RiskTagLaunch,
		RiskTagInput,
		RiskTagKey,
		RiskTagMouse,
		RiskTagClipboard,
		RiskTagScreenshot,
		RiskTagNewApp,
		RiskTagVision,
		RiskTagUIA,
	}
}

// ApprovalMode selects when approval checks fire.
type ApprovalMode string

const (
	ApprovalModePerRun  ApprovalMode = "per_run"
	ApprovalModePerStep ApprovalMode = "per_step"
)

// ApprovalStatus represents the status of an approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// TimelineStatus is the outcome recorded for one step.
type TimelineStatus string

const (
	TimelineStatusOK               TimelineStatus = "ok"
	TimelineStatusError            TimelineStatus = "error"
	TimelineStatusApprovalRequired TimelineStatus = "approval_required"
)

// ArtifactType classifies files produced by a run.
type ArtifactType string

const (
	ArtifactTypeScreenshot ArtifactType = "screenshot"
	ArtifactTypeOCR        ArtifactType = "ocr"
	ArtifactTypeArtifact   ArtifactType = "artifact"
)

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunCreated       EventType = "run_created"
	EventTypeRunStarted       EventType = "run_started"
	EventTypeRunResumed       EventType = "run_resumed"
	EventTypeStepStarted      EventType = "step_started"
	EventTypeStepFinished     EventType = "step_finished"
	EventTypeArtifactRecorded EventType = "artifact_recorded"
	EventTypeApprovalRequired EventType = "approval_required"
	EventTypeApprovalDecision EventType = "approval_decision"
	EventTypeStopRequested    EventType = "stop_requested"
	EventTypeRunCompleted     EventType = "run_completed"
	EventTypeRunFailed        EventType = "run_failed"
	EventTypeRunStopped       EventType = "run_stopped"
)

// ActionType names an action variant.
type ActionType string

const (
	ActionTypeLaunch       ActionType = "launch"
	ActionTypeWait         ActionType = "wait"
	ActionTypeType         ActionType = "type"
	ActionTypeKey          ActionType = "key"
	ActionTypeMouseMove    ActionType = "mouseMove"
	ActionTypeMouseClick   ActionType = "mouseClick"
	ActionTypeScreenshot   ActionType = "screenshot"
	ActionTypeVisionOCR    ActionType = "visionOcr"
	ActionTypeUIAClick     ActionType = "uiaClick"
	ActionTypeUIASetValue  ActionType = "uiaSetValue"
	ActionTypeClipboardSet ActionType = "clipboardSet"
)
