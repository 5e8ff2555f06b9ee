package domain

import "errors"

// Sentinel errors. The messages double as the error codes returned to API
// callers, so keep them stable.
var (
	ErrPlanTooLarge         = errors.New("desktop_runner_max_actions_exceeded")
	ErrPlanBlocked          = errors.New("desktop_plan_blocked")
	ErrActionInvalid        = errors.New("desktop_action_invalid")
	ErrActionBlocked        = errors.New("desktop_action_blocked")
	ErrExecutorUnavailable  = errors.New("desktop_executor_unavailable")
	ErrApprovalNotApproved  = errors.New("approval_not_approved")
	ErrRunNotFound          = errors.New("run_not_found")
	ErrNoPendingApproval    = errors.New("no_pending_approval")
	ErrRunBusy              = errors.New("run_busy")
	ErrRunTerminal          = errors.New("run_terminal")
	ErrApprovalNotFound     = errors.New("approval_not_found")
	ErrApprovalNotPending   = errors.New("approval_not_pending")
	ErrMacroNotFound        = errors.New("macro_not_found")
	ErrMacroNameRequired    = errors.New("macro_name_required")
	ErrMacroActionsRequired = errors.New("macro_actions_required")
	ErrActionsRequired      = errors.New("desktop_actions_required")
	ErrRecorderUnavailable  = errors.New("desktop_record_script_missing")
	ErrRecordingEmpty       = errors.New("desktop_record_empty")
	ErrRecordingInvalidJSON = errors.New("desktop_record_invalid_json")
	ErrInvalidDecision      = errors.New("invalid_decision")
	ErrKillSwitchActive     = errors.New("kill_switch_active")
)
