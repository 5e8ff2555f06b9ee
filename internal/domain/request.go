package domain

// CreateRunRequest asks for a plan to be assessed, created and started.
type CreateRunRequest struct {
	Plan        Plan   `json:"plan"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Async       bool   `json:"async,omitempty"`
}

// RunStartResponse is returned by asynchronous starts.
type RunStartResponse struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`
}

// AssessRequest asks for a plan to be classified without running it.
type AssessRequest struct {
	Plan        Plan   `json:"plan"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// ApprovalDecisionRequest represents an approval decision.
type ApprovalDecisionRequest struct {
	Decision  string `json:"decision"` // approve or reject
	Reason    string `json:"reason,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
	// Resume continues the run in the background once approved.
	Resume bool `json:"resume,omitempty"`
}

// TrustRequest records apps as trusted for a workspace.
type TrustRequest struct {
	Apps []string `json:"apps"`
}

// KillSwitchRequest toggles the kill switch.
type KillSwitchRequest struct {
	Enabled     bool   `json:"enabled"`
	Reason      string `json:"reason,omitempty"`
	ActivatedBy string `json:"activated_by,omitempty"`
}

// CompileOptions tunes the event compiler. Zero values select defaults.
type CompileOptions struct {
	MergeWindowMs *float64 `json:"merge_window_ms,omitempty"`
	MaxWaitMs     *float64 `json:"max_wait_ms,omitempty"`
	MaxActions    *int     `json:"max_actions,omitempty"`
}

// CompileRequest compiles supplied recorded events into actions.
type CompileRequest struct {
	Events  []RecordedEvent `json:"events"`
	Options CompileOptions  `json:"options"`
}

// CompileResponse is the compiled action list.
type CompileResponse struct {
	Actions []RawAction  `json:"actions"`
	Stats   CompileStats `json:"stats"`
}

// RecordRequest starts a live recording.
type RecordRequest struct {
	StopKey      string         `json:"stop_key,omitempty"`
	SampleMs     int            `json:"sample_ms,omitempty"`
	MaxSeconds   int            `json:"max_seconds,omitempty"`
	IncludeMoves *bool          `json:"include_moves,omitempty"`
	Options      CompileOptions `json:"options"`
	// SaveAs stores the result as a macro with this name.
	SaveAs string `json:"save_as,omitempty"`
}

// RecordResponse carries a live recording and its compiled actions.
type RecordResponse struct {
	Events    []RecordedEvent  `json:"events"`
	Actions   []RawAction      `json:"actions"`
	Summary   RecordingSummary `json:"summary"`
	Recording RecordingInfo    `json:"recording"`
	Macro     *Macro           `json:"macro,omitempty"`
}

// MacroRunRequest runs a stored macro with parameters.
type MacroRunRequest struct {
	Params      map[string]any `json:"params,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Async       bool           `json:"async,omitempty"`
}

// MacroParamsResponse lists the parameters a macro body references.
type MacroParamsResponse struct {
	Params []string `json:"params"`
}
