package domain

import "time"

// DefaultMacroMaxActions is the action limit for macros saved without one.
const DefaultMacroMaxActions = 60

// Macro is a named, parameterised plan template.
type Macro struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	StartURL    string         `json:"start_url,omitempty"`
	Actions     []RawAction    `json:"actions"`
	Safety      SafetyConfig   `json:"safety"`
	Recording   *RecordingInfo `json:"recording,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RecordingInfo describes the capture a macro was compiled from.
type RecordingInfo struct {
	StartedAt   string `json:"started_at,omitempty"`
	StoppedAt   string `json:"stopped_at,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
	EventCount  int    `json:"event_count"`
	ActionCount int    `json:"action_count"`
	Truncated   bool   `json:"truncated,omitempty"`
	WaitsCapped int    `json:"waits_capped,omitempty"`
}
