package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/safety"
)

// executeRun walks the actions of run from start. granted is the approval
// id that released the step at start, if any. The caller holds the run
// guard. The returned run reflects the stored state after the loop.
func (s *Service) executeRun(ctx context.Context, run *domain.Run, start int, granted string) (*domain.Run, error) {
	for i := start; i < len(run.Actions); i++ {
		current, err := s.GetRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return current, nil
		}
		if s.killSwitchEnabled(ctx) {
			return s.stopAndReload(ctx, current, "kill_switch_active")
		}
		if current.StopRequested {
			return s.stopAndReload(ctx, current, "stop_requested")
		}

		raw := run.Actions[i]
		skipAssessment := i == start && granted != "" && !s.cfg.ResumeReassess
		if run.Safety.Mode() == domain.ApprovalModePerStep && !skipAssessment {
			assessment, err := s.assessor.AssessStep(ctx, raw, run.Safety, run.WorkspaceID)
			if err != nil {
				return s.failStep(ctx, run, i, raw, time.Now(), fmt.Errorf("failed to assess step: %w", err))
			}
			if assessment.Blocked {
				return s.failStep(ctx, run, i, raw, time.Now(), fmt.Errorf("%w: %s", domain.ErrActionBlocked, assessment.BlockReason))
			}
			if assessment.RequiresApproval {
				return s.suspend(ctx, run, i, raw, assessment)
			}
		}

		failed, err := s.runStep(ctx, run, i, raw)
		if err != nil {
			return nil, err
		}
		if failed {
			return s.GetRun(ctx, run.ID)
		}
	}

	now := time.Now()
	ok, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusCompleted, domain.RunUpdate{FinishedAt: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to update run status: %w", err)
	}
	if ok {
		s.metrics.runFinished(ctx, domain.RunStatusCompleted)
		s.emit(ctx, run.ID, domain.EventTypeRunCompleted, map[string]interface{}{"actions": len(run.Actions)})
		s.logger.Info("run completed", "run_id", run.ID, "actions", len(run.Actions))
	}
	return s.GetRun(ctx, run.ID)
}

// runStep executes one action and records its timeline entry. A failing
// step moves the run to error and reports failed; err is reserved for
// storage failures.
func (s *Service) runStep(ctx context.Context, run *domain.Run, index int, raw domain.RawAction) (failed bool, err error) {
	ctx, span := s.tracer.Start(ctx, "run.step", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("step.index", index),
		attribute.String("action.type", raw.Type()),
	))
	defer span.End()

	startedAt := time.Now()
	s.emit(ctx, run.ID, domain.EventTypeStepStarted, map[string]interface{}{
		"step": index + 1,
		"type": raw.Type(),
	})

	if stepErr := s.executeStep(ctx, run, index, raw); stepErr != nil {
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, stepErr.Error())
		if _, err := s.failStep(ctx, run, index, raw, startedAt, stepErr); err != nil {
			return true, err
		}
		return true, nil
	}

	entry := domain.TimelineEntry{
		Step:       index + 1,
		Type:       raw.Type(),
		Status:     domain.TimelineStatusOK,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Action:     raw,
	}
	if err := s.store.AppendTimeline(ctx, run.ID, entry); err != nil {
		return false, fmt.Errorf("failed to append timeline: %w", err)
	}
	s.metrics.stepExecuted(ctx, entry.Type, entry.Status)
	s.emit(ctx, run.ID, domain.EventTypeStepFinished, map[string]interface{}{
		"step":   entry.Step,
		"type":   entry.Type,
		"status": entry.Status,
	})
	return false, nil
}

// executeStep performs one normalized action.
func (s *Service) executeStep(ctx context.Context, run *domain.Run, index int, raw domain.RawAction) error {
	action, ok := domain.NormalizeAction(raw)
	if !ok {
		return fmt.Errorf("%w: step %d", domain.ErrActionInvalid, index+1)
	}
	dir, err := s.store.ArtifactDir(run.ID)
	if err != nil {
		return fmt.Errorf("failed to prepare artifact dir: %w", err)
	}

	if ocr, ok := action.(domain.VisionOCR); ok {
		return s.visionOCR(ctx, run, index, ocr, dir)
	}

	result, err := s.executor.Execute(ctx, action, dir)
	if err != nil {
		return err
	}
	if result != nil && !result.OK {
		return errors.New(orDefault(result.Raw, "desktop_action_failed"))
	}
	if result != nil && result.Artifact != "" {
		typ := result.ArtifactType
		if typ == "" {
			if action.Kind() == domain.ActionTypeScreenshot {
				typ = domain.ArtifactTypeScreenshot
			} else {
				typ = domain.ArtifactTypeArtifact
			}
		}
		if err := s.addArtifact(ctx, run.ID, index, typ, resolveArtifact(dir, result.Artifact)); err != nil {
			return err
		}
	}
	if launch, ok := action.(domain.Launch); ok {
		if err := s.trust.Record(ctx, run.WorkspaceID, launch.Target); err != nil {
			s.logger.Warn("failed to record trusted app", "run_id", run.ID, "target", launch.Target, "error", err)
		}
	}
	return nil
}

// visionOCR captures the screen, keeps the capture as an artifact and then
// runs text recognition on it.
func (s *Service) visionOCR(ctx context.Context, run *domain.Run, index int, action domain.VisionOCR, dir string) error {
	result, err := s.executor.Execute(ctx, domain.Screenshot{Name: action.Name}, dir)
	if err != nil {
		return err
	}
	if result == nil || !result.OK || result.Artifact == "" {
		return errors.New("desktop_ocr_screenshot_missing")
	}
	image := resolveArtifact(dir, result.Artifact)
	if err := s.addArtifact(ctx, run.ID, index, domain.ArtifactTypeScreenshot, image); err != nil {
		return err
	}

	if s.ocr == nil {
		return errors.New("desktop_ocr_unavailable")
	}
	text, err := s.ocr.Recognize(ctx, image, action.Lang)
	if err != nil {
		return err
	}
	textFile := filepath.Join(dir, fmt.Sprintf("step_%d_%s.txt", index+1, sanitizeName(action.Name)))
	if err := os.WriteFile(textFile, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write ocr text: %w", err)
	}
	return s.addArtifact(ctx, run.ID, index, domain.ArtifactTypeOCR, textFile)
}

func (s *Service) addArtifact(ctx context.Context, runID string, index int, typ domain.ArtifactType, file string) error {
	artifact := domain.Artifact{Type: typ, File: file, Step: index + 1, CreatedAt: time.Now()}
	if err := s.store.AppendArtifact(ctx, runID, artifact); err != nil {
		return fmt.Errorf("failed to append artifact: %w", err)
	}
	s.emit(ctx, runID, domain.EventTypeArtifactRecorded, artifact)
	return nil
}

// suspend parks the run on an approval for the step at index.
func (s *Service) suspend(ctx context.Context, run *domain.Run, index int, raw domain.RawAction, assessment domain.StepAssessment) (*domain.Run, error) {
	payload := map[string]any(raw)
	if action, ok := domain.NormalizeAction(raw); ok {
		payload = domain.EncodeAction(action)
	}
	summary := fmt.Sprintf("Step %d: %s", index+1, raw.Type())
	if len(assessment.Reasons) > 0 {
		summary += " (" + strings.Join(assessment.Reasons, "; ") + ")"
	}

	approval, err := s.approvals.CreateApproval(ctx, domain.ApprovalRequest{
		RunID:      run.ID,
		StepIndex:  index,
		ActionType: raw.Type(),
		Summary:    summary,
		Payload:    safety.RedactPayload(payload),
		CreatedBy:  run.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}

	pending := &domain.PendingApproval{
		ApprovalID: approval.ApprovalID,
		StepIndex:  index,
		Action:     raw,
		Reasons:    assessment.Reasons,
	}
	if err := s.store.SetPendingApproval(ctx, run.ID, pending); err != nil {
		return nil, fmt.Errorf("failed to set pending approval: %w", err)
	}
	now := time.Now()
	entry := domain.TimelineEntry{
		Step:       index + 1,
		Type:       raw.Type(),
		Status:     domain.TimelineStatusApprovalRequired,
		StartedAt:  now,
		FinishedAt: now,
		Action:     raw,
	}
	if err := s.store.AppendTimeline(ctx, run.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to append timeline: %w", err)
	}
	if _, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusApprovalRequired, domain.RunUpdate{}); err != nil {
		return nil, fmt.Errorf("failed to update run status: %w", err)
	}
	s.metrics.approvalsRequested.Add(ctx, 1)
	s.emit(ctx, run.ID, domain.EventTypeApprovalRequired, map[string]interface{}{
		"approval_id": approval.ApprovalID,
		"step_index":  index,
		"summary":     summary,
		"reasons":     assessment.Reasons,
		"tags":        assessment.Tags,
	})
	s.logger.Info("approval required", "run_id", run.ID, "approval_id", approval.ApprovalID, "step", index+1)

	current, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if current.StopRequested {
		return s.stopAndReload(ctx, current, "stop_requested")
	}
	return current, nil
}

// failStep records a failed step and moves the run to error. The error
// text is kept verbatim.
func (s *Service) failStep(ctx context.Context, run *domain.Run, index int, raw domain.RawAction, startedAt time.Time, stepErr error) (*domain.Run, error) {
	message := stepErr.Error()
	now := time.Now()
	entry := domain.TimelineEntry{
		Step:       index + 1,
		Type:       raw.Type(),
		Status:     domain.TimelineStatusError,
		StartedAt:  startedAt,
		FinishedAt: now,
		Error:      message,
		Action:     raw,
	}
	if err := s.store.AppendTimeline(ctx, run.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to append timeline: %w", err)
	}
	s.metrics.stepExecuted(ctx, entry.Type, entry.Status)

	ok, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusError, domain.RunUpdate{FinishedAt: &now, Error: &message})
	if err != nil {
		return nil, fmt.Errorf("failed to update run status: %w", err)
	}
	if ok {
		s.metrics.runFinished(ctx, domain.RunStatusError)
		s.emit(ctx, run.ID, domain.EventTypeRunFailed, map[string]interface{}{
			"step":  index + 1,
			"error": message,
		})
		s.logger.Warn("run failed", "run_id", run.ID, "step", index+1, "error", message)
	}
	return s.GetRun(ctx, run.ID)
}

// finishStopped moves a run to stopped and drops any pending approval.
func (s *Service) finishStopped(ctx context.Context, run *domain.Run, reason string) error {
	now := time.Now()
	ok, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusStopped, domain.RunUpdate{FinishedAt: &now, Error: &reason})
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if !ok {
		return nil
	}
	if run.PendingApproval != nil {
		if err := s.store.SetPendingApproval(ctx, run.ID, nil); err != nil {
			return fmt.Errorf("failed to clear pending approval: %w", err)
		}
	}
	s.metrics.runFinished(ctx, domain.RunStatusStopped)
	s.emit(ctx, run.ID, domain.EventTypeRunStopped, map[string]interface{}{"reason": reason})
	s.logger.Info("run stopped", "run_id", run.ID, "reason", reason)
	return nil
}

func (s *Service) stopAndReload(ctx context.Context, run *domain.Run, reason string) (*domain.Run, error) {
	if err := s.finishStopped(ctx, run, reason); err != nil {
		return nil, err
	}
	return s.GetRun(ctx, run.ID)
}

func resolveArtifact(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "ocr"
	}
	return name
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
