package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// ListTrusted returns the trusted apps of a workspace.
func (s *Service) ListTrusted(ctx context.Context, workspaceID string) ([]string, error) {
	apps, err := s.trust.List(ctx, domain.RunContext{WorkspaceID: workspaceID}.Workspace())
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted apps: %w", err)
	}
	if apps == nil {
		apps = []string{}
	}
	return apps, nil
}

// RecordTrusted adds apps to a workspace's trust list and returns the list.
func (s *Service) RecordTrusted(ctx context.Context, workspaceID string, apps []string) ([]string, error) {
	workspaceID = domain.RunContext{WorkspaceID: workspaceID}.Workspace()
	if err := s.trust.Record(ctx, workspaceID, apps...); err != nil {
		return nil, fmt.Errorf("failed to record trusted apps: %w", err)
	}
	s.logger.Info("trusted apps recorded", "workspace_id", workspaceID, "count", len(apps))
	return s.ListTrusted(ctx, workspaceID)
}

// ResetTrusted empties a workspace's trust list.
func (s *Service) ResetTrusted(ctx context.Context, workspaceID string) error {
	workspaceID = domain.RunContext{WorkspaceID: workspaceID}.Workspace()
	if err := s.trust.Reset(ctx, workspaceID); err != nil {
		return fmt.Errorf("failed to reset trusted apps: %w", err)
	}
	s.logger.Info("trusted apps reset", "workspace_id", workspaceID)
	return nil
}

// KillSwitchState returns the kill switch flag. Without a kill switch the
// runner reports it disabled.
func (s *Service) KillSwitchState(ctx context.Context) (domain.KillSwitchState, error) {
	if s.killSwitch == nil {
		return domain.KillSwitchState{}, nil
	}
	return s.killSwitch.State(ctx)
}

// SetKillSwitch toggles the kill switch. Enabling it stops every run at its
// next checkpoint.
func (s *Service) SetKillSwitch(ctx context.Context, req domain.KillSwitchRequest) (domain.KillSwitchState, error) {
	if s.killSwitch == nil {
		return domain.KillSwitchState{}, fmt.Errorf("kill switch not configured")
	}
	return s.killSwitch.Set(ctx, req)
}
