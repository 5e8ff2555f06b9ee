package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/macro"
)

// SaveMacro creates or replaces a macro. The id defaults to the slug of
// its name. Replacing keeps the creation time, and the safety config and
// recording info of the stored macro when the new one carries none.
func (s *Service) SaveMacro(ctx context.Context, m domain.Macro) (*domain.Macro, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return nil, domain.ErrMacroNameRequired
	}
	if len(m.Actions) == 0 {
		return nil, domain.ErrMacroActionsRequired
	}
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		m.ID = macro.Slug(m.Name)
	}

	existing, err := s.store.GetMacro(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get macro: %w", err)
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	if existing != nil {
		m.CreatedAt = existing.CreatedAt
		if isZeroSafety(m.Safety) {
			m.Safety = existing.Safety
		}
		if m.Recording == nil {
			m.Recording = existing.Recording
		}
	}
	if isZeroSafety(m.Safety) {
		m.Safety = macro.DefaultSafety()
	}
	m.UpdatedAt = now

	if err := s.store.SaveMacro(ctx, &m); err != nil {
		return nil, fmt.Errorf("failed to save macro: %w", err)
	}
	s.logger.Info("macro saved", "macro_id", m.ID, "actions", len(m.Actions))
	return &m, nil
}

// GetMacro returns a macro or ErrMacroNotFound.
func (s *Service) GetMacro(ctx context.Context, id string) (*domain.Macro, error) {
	m, err := s.store.GetMacro(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get macro: %w", err)
	}
	if m == nil {
		return nil, domain.ErrMacroNotFound
	}
	return m, nil
}

// ListMacros returns the macro library, most recently updated first.
func (s *Service) ListMacros(ctx context.Context) ([]domain.Macro, error) {
	macros, err := s.store.ListMacros(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list macros: %w", err)
	}
	return macros, nil
}

func (s *Service) DeleteMacro(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteMacro(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete macro: %w", err)
	}
	if !deleted {
		return domain.ErrMacroNotFound
	}
	s.logger.Info("macro deleted", "macro_id", id)
	return nil
}

// BuildMacroPlan renders a stored macro into a plan without running it.
func (s *Service) BuildMacroPlan(ctx context.Context, id string, params map[string]any) (domain.Plan, error) {
	m, err := s.GetMacro(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}
	return macro.BuildPlan(*m, params), nil
}

// RunMacro renders a stored macro and runs it like any other plan.
func (s *Service) RunMacro(ctx context.Context, id string, req domain.MacroRunRequest) (*domain.Run, error) {
	plan, err := s.BuildMacroPlan(ctx, id, req.Params)
	if err != nil {
		return nil, err
	}
	rc := domain.RunContext{WorkspaceID: req.WorkspaceID, UserID: req.UserID}
	return s.RunPlan(ctx, plan, rc, req.Async)
}

// MacroParams lists the template parameters a macro body references.
func (s *Service) MacroParams(m domain.Macro) []string {
	params := macro.ExtractParams(m)
	if params == nil {
		params = []string{}
	}
	return params
}

func isZeroSafety(c domain.SafetyConfig) bool {
	return len(c.RequireApprovalFor) == 0 && c.MaxActions == 0 && c.ApprovalMode == ""
}
