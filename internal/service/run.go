package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/safety"
)

// AssessPlan classifies a plan without creating a run.
func (s *Service) AssessPlan(ctx context.Context, plan domain.Plan, workspaceID string) (domain.RiskAssessment, error) {
	return s.assessor.AssessPlan(ctx, plan, domain.RunContext{WorkspaceID: workspaceID}.Workspace())
}

// CreateRun validates a plan and stores it as a new run in status created.
// Plans that are empty, too large or blocked by policy never create a run.
func (s *Service) CreateRun(ctx context.Context, plan domain.Plan, rc domain.RunContext) (*domain.Run, error) {
	run, _, err := s.createRun(ctx, plan, rc)
	return run, err
}

func (s *Service) createRun(ctx context.Context, plan domain.Plan, rc domain.RunContext) (*domain.Run, domain.RiskAssessment, error) {
	var assessment domain.RiskAssessment
	if len(plan.Actions) == 0 {
		return nil, assessment, domain.ErrActionsRequired
	}
	if s.killSwitchEnabled(ctx) {
		return nil, assessment, domain.ErrKillSwitchActive
	}

	workspaceID := rc.Workspace()
	assessment, err := s.assessor.AssessPlan(ctx, plan, workspaceID)
	if err != nil {
		return nil, assessment, fmt.Errorf("failed to assess plan: %w", err)
	}
	if err := s.assessor.Validate(assessment); err != nil {
		return nil, assessment, err
	}
	if err := s.executor.Ready(); err != nil {
		if !errors.Is(err, domain.ErrExecutorUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrExecutorUnavailable, err)
		}
		return nil, assessment, err
	}

	run := &domain.Run{
		ID:          "run_" + uuid.New().String()[:8],
		Status:      domain.RunStatusCreated,
		TaskName:    assessment.TaskName,
		Actions:     plan.Actions,
		Safety:      plan.Safety,
		WorkspaceID: workspaceID,
		CreatedBy:   rc.UserID,
		Timeline:    []domain.TimelineEntry{},
		Artifacts:   []domain.Artifact{},
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, assessment, fmt.Errorf("failed to create run: %w", err)
	}
	s.emit(ctx, run.ID, domain.EventTypeRunCreated, map[string]interface{}{
		"task_name":  run.TaskName,
		"assessment": assessment,
	})
	s.logger.Info("run created", "run_id", run.ID, "workspace_id", workspaceID, "actions", len(run.Actions))
	return run, assessment, nil
}

// RunPlan creates a run and starts it. A per_run plan that requires
// approval is suspended on a plan-level approval instead of starting; it
// continues through ContinueRun once approved.
func (s *Service) RunPlan(ctx context.Context, plan domain.Plan, rc domain.RunContext, async bool) (*domain.Run, error) {
	run, assessment, err := s.createRun(ctx, plan, rc)
	if err != nil {
		return nil, err
	}
	if run.Safety.Mode() == domain.ApprovalModePerRun && assessment.RequiresApproval {
		if err := s.requestPlanApproval(ctx, run, assessment); err != nil {
			return nil, err
		}
		return s.GetRun(ctx, run.ID)
	}
	if async {
		return s.StartRunAsync(ctx, run.ID)
	}
	return s.StartRun(ctx, run.ID)
}

// GetRun returns a run with its timeline and artifacts.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return runs, nil
}

// StartRun starts a created run and blocks until the loop returns.
func (s *Service) StartRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.start(ctx, runID, false)
}

// StartRunAsync starts a created run in the background and returns the run
// in status running.
func (s *Service) StartRunAsync(ctx context.Context, runID string) (*domain.Run, error) {
	return s.start(ctx, runID, true)
}

func (s *Service) start(ctx context.Context, runID string, async bool) (*domain.Run, error) {
	if !s.acquire(runID) {
		return nil, domain.ErrRunBusy
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		s.release(runID)
		return nil, err
	}
	switch {
	case run.Status.Terminal():
		s.release(runID)
		return nil, domain.ErrRunTerminal
	case run.Status != domain.RunStatusCreated:
		s.release(runID)
		return nil, fmt.Errorf("%w: run is %s", domain.ErrRunBusy, run.Status)
	}

	if err := s.markStarted(ctx, run); err != nil {
		s.release(runID)
		return nil, err
	}
	s.emit(ctx, run.ID, domain.EventTypeRunStarted, map[string]interface{}{"task_name": run.TaskName})
	return s.launch(ctx, run, 0, "", async)
}

// markStarted moves a run to running and, outside per_step mode, trusts
// every app the plan launches.
func (s *Service) markStarted(ctx context.Context, run *domain.Run) error {
	now := time.Now()
	if _, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusRunning, domain.RunUpdate{StartedAt: &now}); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &now

	if run.Safety.Mode() != domain.ApprovalModePerStep {
		if targets := domain.LaunchTargets(run.Actions); len(targets) > 0 {
			if err := s.trust.Record(ctx, run.WorkspaceID, targets...); err != nil {
				s.logger.Warn("failed to record trusted apps", "run_id", run.ID, "error", err)
			}
		}
	}
	s.metrics.runsStarted.Add(ctx, 1)
	s.logger.Info("run started", "run_id", run.ID, "mode", run.Safety.Mode())
	return nil
}

// launch runs the loop in the caller's goroutine or in the background. The
// run guard held by the caller is released when the loop returns.
func (s *Service) launch(ctx context.Context, run *domain.Run, start int, granted string, async bool) (*domain.Run, error) {
	if !async {
		defer s.release(run.ID)
		return s.executeRun(ctx, run, start, granted)
	}

	snapshot := *run
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.ID)
		if _, err := s.executeRun(bg, run, start, granted); err != nil {
			s.logger.Error("background run failed", "run_id", run.ID, "error", err)
		}
	}()
	return &snapshot, nil
}

// ContinueRun resumes a suspended run once its approval was granted and
// blocks until the loop returns.
func (s *Service) ContinueRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.resume(ctx, runID, false)
}

// ContinueRunAsync resumes a suspended run in the background.
func (s *Service) ContinueRunAsync(ctx context.Context, runID string) (*domain.Run, error) {
	return s.resume(ctx, runID, true)
}

func (s *Service) resume(ctx context.Context, runID string, async bool) (*domain.Run, error) {
	if !s.acquire(runID) {
		return nil, domain.ErrRunBusy
	}
	run, pending, approvalID, err := s.prepareResume(ctx, runID)
	if err != nil {
		s.release(runID)
		return nil, err
	}
	s.emit(ctx, run.ID, domain.EventTypeRunResumed, map[string]interface{}{
		"approval_id": approvalID,
		"step_index":  pending.StepIndex,
	})
	return s.launch(ctx, run, pending.StepIndex, approvalID, async)
}

func (s *Service) prepareResume(ctx context.Context, runID string) (*domain.Run, *domain.PendingApproval, string, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, "", err
	}
	pending := run.PendingApproval
	if pending == nil {
		if run.Status.Terminal() {
			return nil, nil, "", domain.ErrRunTerminal
		}
		return nil, nil, "", domain.ErrNoPendingApproval
	}

	approval, err := s.approvals.GetApproval(ctx, pending.ApprovalID)
	if err != nil {
		return nil, nil, "", err
	}
	if approval.Status != domain.ApprovalStatusApproved {
		return nil, nil, "", fmt.Errorf("%w: approval is %s", domain.ErrApprovalNotApproved, approval.Status)
	}

	if err := s.store.SetPendingApproval(ctx, run.ID, nil); err != nil {
		return nil, nil, "", fmt.Errorf("failed to clear pending approval: %w", err)
	}
	run.PendingApproval = nil

	if run.StartedAt == nil {
		// plan-level approval: the run never started
		if err := s.markStarted(ctx, run); err != nil {
			return nil, nil, "", err
		}
	} else {
		ok, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusRunning, domain.RunUpdate{})
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to update run status: %w", err)
		}
		if !ok {
			return nil, nil, "", domain.ErrRunTerminal
		}
		run.Status = domain.RunStatusRunning
		s.metrics.runsStarted.Add(ctx, 1)
	}
	s.logger.Info("run resumed", "run_id", run.ID, "step", pending.StepIndex+1, "approval_id", approval.ApprovalID)
	return run, pending, approval.ApprovalID, nil
}

// RequestStop asks a run to stop. A run with a loop in flight moves to
// stopping and stops at its next checkpoint; any other non-terminal run
// stops immediately. Stopping a terminal run is a no-op.
func (s *Service) RequestStop(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}

	if err := s.store.SetStopRequested(ctx, runID); err != nil {
		return nil, fmt.Errorf("failed to request stop: %w", err)
	}
	s.emit(ctx, runID, domain.EventTypeStopRequested, map[string]interface{}{"status": run.Status})

	if !s.acquire(runID) {
		current, err := s.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		// A loop that already parked the run on an approval is only
		// unwinding; it will not look at the stop flag again.
		if current.Status == domain.RunStatusApprovalRequired && current.PendingApproval != nil {
			if err := s.finishStopped(ctx, current, "stop_requested"); err != nil {
				return nil, err
			}
			return s.GetRun(ctx, runID)
		}
		if _, err := s.store.SetRunStatus(ctx, runID, domain.RunStatusStopping, domain.RunUpdate{}); err != nil {
			return nil, fmt.Errorf("failed to update run status: %w", err)
		}
		s.logger.Info("stop requested", "run_id", runID)
		return s.GetRun(ctx, runID)
	}
	defer s.release(runID)

	if err := s.finishStopped(ctx, run, "stop_requested"); err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// requestPlanApproval suspends a created run on one approval covering the
// whole plan.
func (s *Service) requestPlanApproval(ctx context.Context, run *domain.Run, assessment domain.RiskAssessment) error {
	tags := make([]string, len(assessment.RiskTags))
	for i, t := range assessment.RiskTags {
		tags[i] = string(t)
	}
	summary := fmt.Sprintf("Run desktop plan %q (%d actions)", run.TaskName, assessment.TotalActions)
	if len(assessment.NewApps) > 0 {
		summary += "; new apps: " + strings.Join(assessment.NewApps, ", ")
	}
	actions := make([]any, len(run.Actions))
	for i, a := range run.Actions {
		actions[i] = map[string]any(a)
	}
	payload := safety.RedactPayload(map[string]any{
		"task_name": run.TaskName,
		"actions":   actions,
		"risk_tags": tags,
		"new_apps":  assessment.NewApps,
	})

	approval, err := s.approvals.CreateApproval(ctx, domain.ApprovalRequest{
		RunID:      run.ID,
		StepIndex:  0,
		ActionType: "plan",
		Summary:    summary,
		Payload:    payload,
		CreatedBy:  run.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("failed to create approval: %w", err)
	}
	pending := &domain.PendingApproval{
		ApprovalID: approval.ApprovalID,
		StepIndex:  0,
		Reasons:    assessment.Reasons,
	}
	if err := s.store.SetPendingApproval(ctx, run.ID, pending); err != nil {
		return fmt.Errorf("failed to set pending approval: %w", err)
	}
	if _, err := s.store.SetRunStatus(ctx, run.ID, domain.RunStatusApprovalRequired, domain.RunUpdate{}); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	s.metrics.approvalsRequested.Add(ctx, 1)
	s.emit(ctx, run.ID, domain.EventTypeApprovalRequired, map[string]interface{}{
		"approval_id": approval.ApprovalID,
		"step_index":  0,
		"summary":     summary,
		"reasons":     assessment.Reasons,
	})
	s.logger.Info("approval required", "run_id", run.ID, "approval_id", approval.ApprovalID, "scope", "plan")
	return nil
}
