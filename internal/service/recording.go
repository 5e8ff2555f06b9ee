package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/recorder"
)

// compileOptions returns the configured compiler defaults with the request
// overrides applied.
func (s *Service) compileOptions(req domain.CompileOptions) recorder.Options {
	opts := recorder.Options{
		MergeWindowMs: float64(s.cfg.RecordMergeWindowMs),
		MaxWaitMs:     float64(s.cfg.RecordMaxWaitMs),
		MaxActions:    s.cfg.RecordMaxActions,
	}
	if opts.MaxActions <= 0 {
		opts.MaxActions = recorder.DefaultMaxActions
	}
	return opts.WithOverrides(req)
}

// CompileRecording compiles supplied recorded events into actions.
func (s *Service) CompileRecording(req domain.CompileRequest) domain.CompileResponse {
	result := recorder.Compile(req.Events, s.compileOptions(req.Options))
	return domain.CompileResponse{Actions: nonNilActions(result.Actions), Stats: result.Stats}
}

// RecordMacro captures live input through the recorder program and
// compiles it. With SaveAs set the result is also stored as a macro.
func (s *Service) RecordMacro(ctx context.Context, req domain.RecordRequest) (*domain.RecordResponse, error) {
	if s.recorder == nil {
		return nil, domain.ErrRecorderUnavailable
	}

	opts := recorder.RecordOptions{
		StopKey:      s.cfg.RecordStopKey,
		SampleMs:     s.cfg.RecordSampleMs,
		MaxSeconds:   s.cfg.RecordMaxSeconds,
		IncludeMoves: s.cfg.RecordIncludeMoves,
	}
	if req.StopKey != "" {
		opts.StopKey = req.StopKey
	}
	if req.SampleMs > 0 {
		opts.SampleMs = req.SampleMs
	}
	if req.MaxSeconds > 0 {
		opts.MaxSeconds = req.MaxSeconds
	}
	if req.IncludeMoves != nil {
		opts.IncludeMoves = *req.IncludeMoves
	}

	s.logger.Info("recording started", "stop_key", opts.StopKey, "max_seconds", opts.MaxSeconds)
	rec, err := s.recorder.Record(ctx, opts)
	if err != nil {
		return nil, err
	}
	if rec.Options.StopKey != "" {
		opts = rec.Options
	}

	result := recorder.Compile(rec.Events, s.compileOptions(req.Options))
	actions := nonNilActions(result.Actions)
	resp := &domain.RecordResponse{
		Events:  rec.Events,
		Actions: actions,
		Summary: domain.RecordingSummary{
			EventCount:   len(rec.Events),
			ActionCount:  len(actions),
			DurationMs:   rec.DurationMs,
			StopKey:      opts.StopKey,
			SampleMs:     opts.SampleMs,
			IncludeMoves: opts.IncludeMoves,
			Truncated:    result.Stats.Truncated,
			WaitsCapped:  result.Stats.WaitsCapped,
		},
		Recording: domain.RecordingInfo{
			StartedAt:   rec.StartedAt,
			StoppedAt:   rec.StoppedAt,
			DurationMs:  rec.DurationMs,
			EventCount:  len(rec.Events),
			ActionCount: len(actions),
			Truncated:   result.Stats.Truncated,
			WaitsCapped: result.Stats.WaitsCapped,
		},
	}
	s.logger.Info("recording finished", "events", len(rec.Events), "actions", len(actions), "truncated", result.Stats.Truncated)

	if req.SaveAs != "" {
		if len(actions) == 0 {
			return nil, fmt.Errorf("%w: recording produced no actions", domain.ErrMacroActionsRequired)
		}
		info := resp.Recording
		saved, err := s.SaveMacro(ctx, domain.Macro{
			Name:        req.SaveAs,
			Description: fmt.Sprintf("Recorded %s", time.Now().UTC().Format(time.RFC3339)),
			Actions:     actions,
			Recording:   &info,
		})
		if err != nil {
			return nil, err
		}
		resp.Macro = saved
	}
	return resp, nil
}

func nonNilActions(actions []domain.RawAction) []domain.RawAction {
	if actions == nil {
		return []domain.RawAction{}
	}
	return actions
}
