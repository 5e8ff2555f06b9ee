package domain

// RecordedEventType names a raw input event kind.
type RecordedEventType string

const (
	RecordedEventChar       RecordedEventType = "char"
	RecordedEventKey        RecordedEventType = "key"
	RecordedEventText       RecordedEventType = "type"
	RecordedEventMouseClick RecordedEventType = "mouseClick"
	RecordedEventMouseMove  RecordedEventType = "mouseMove"
)

// RecordedEvent is one raw input event. DelayMs is the time elapsed since
// the previous event.
type RecordedEvent struct {
	Type    RecordedEventType `json:"type"`
	Value   string            `json:"value,omitempty"`
	Combo   string            `json:"combo,omitempty"`
	Text    string            `json:"text,omitempty"`
	X       int               `json:"x,omitempty"`
	Y       int               `json:"y,omitempty"`
	Button  string            `json:"button,omitempty"`
	Count   int               `json:"count,omitempty"`
	DelayMs float64           `json:"delayMs"`
}

// CompileStats reports what the event compiler did to its input.
type CompileStats struct {
	WaitsCapped int  `json:"waits_capped"`
	Truncated   bool `json:"truncated"`
}

// RecordingSummary is returned alongside a live recording.
type RecordingSummary struct {
	EventCount   int    `json:"event_count"`
	ActionCount  int    `json:"action_count"`
	DurationMs   int64  `json:"duration_ms"`
	StopKey      string `json:"stop_key"`
	SampleMs     int    `json:"sample_ms"`
	IncludeMoves bool   `json:"include_moves"`
	Truncated    bool   `json:"truncated"`
	WaitsCapped  int    `json:"waits_capped"`
}
