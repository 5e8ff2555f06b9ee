package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xiaot623/gogo/deskrunner/internal/adapter/executor"
	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// Recorder defaults used when neither the request nor the configuration
// sets a value.
const (
	DefaultSampleMs   = 30
	DefaultMaxSeconds = 180
	DefaultStopKey    = "F8"
)

// RecordOptions controls one live capture.
type RecordOptions struct {
	StopKey      string
	SampleMs     int
	MaxSeconds   int
	IncludeMoves bool
}

func (o RecordOptions) withDefaults() RecordOptions {
	if o.StopKey == "" {
		o.StopKey = DefaultStopKey
	}
	if o.SampleMs <= 0 {
		o.SampleMs = DefaultSampleMs
	}
	if o.MaxSeconds <= 0 {
		o.MaxSeconds = DefaultMaxSeconds
	}
	return o
}

// Recording is the raw payload of a capture.
type Recording struct {
	Events     []domain.RecordedEvent `json:"events"`
	StartedAt  string                 `json:"startedAt"`
	StoppedAt  string                 `json:"stoppedAt"`
	DurationMs int64                  `json:"durationMs"`
	Options    RecordOptions          `json:"-"`
}

// ProcessRecorder spawns an external capture program that records input
// until the stop key is pressed and prints the events as JSON.
type ProcessRecorder struct {
	cmd executor.Command
}

// NewProcessRecorder creates a recorder for cmd.
func NewProcessRecorder(cmd executor.Command) *ProcessRecorder {
	return &ProcessRecorder{cmd: cmd}
}

// Ready reports whether the capture program is available.
func (p *ProcessRecorder) Ready() error {
	if err := p.cmd.Ready(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRecorderUnavailable, err)
	}
	return nil
}

// Record runs one capture. It blocks until the program exits.
func (p *ProcessRecorder) Record(ctx context.Context, opts RecordOptions) (*Recording, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	args := []string{
		"-StopKey", opts.StopKey,
		"-SampleMs", strconv.Itoa(opts.SampleMs),
		"-MaxSeconds", strconv.Itoa(opts.MaxSeconds),
	}
	if opts.IncludeMoves {
		args = append(args, "-IncludeMouseMoves")
	}

	stdout, err := p.cmd.Run(ctx, "desktop_record_failed", args...)
	if err != nil {
		return nil, err
	}
	if stdout == "" {
		return nil, domain.ErrRecordingEmpty
	}

	var rec Recording
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecordingInvalidJSON, err)
	}
	if rec.Events == nil {
		rec.Events = []domain.RecordedEvent{}
	}
	rec.Options = opts
	return &rec, nil
}
