package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// LocalApprovalGateway stores approvals in the runner's own database and
// leaves the decision to the operator API.
type LocalApprovalGateway struct {
	store ApprovalStore
}

// NewLocalApprovalGateway creates a gateway backed by store.
func NewLocalApprovalGateway(store ApprovalStore) *LocalApprovalGateway {
	return &LocalApprovalGateway{store: store}
}

// CreateApproval persists a pending approval.
func (g *LocalApprovalGateway) CreateApproval(ctx context.Context, req domain.ApprovalRequest) (*domain.Approval, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal approval payload: %w", err)
	}
	approval := &domain.Approval{
		ApprovalID: "apr_" + uuid.New().String()[:8],
		RunID:      req.RunID,
		StepIndex:  req.StepIndex,
		ActionType: req.ActionType,
		Summary:    req.Summary,
		Payload:    payload,
		Status:     domain.ApprovalStatusPending,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  time.Now(),
	}
	if err := g.store.CreateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}
	return approval, nil
}

// GetApproval returns an approval or ErrApprovalNotFound.
func (g *LocalApprovalGateway) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	approval, err := g.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	if approval == nil {
		return nil, domain.ErrApprovalNotFound
	}
	return approval, nil
}

// GetApproval returns an approval by id.
func (s *Service) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	return s.approvals.GetApproval(ctx, approvalID)
}

// ListApprovals lists approvals, optionally filtered by status.
func (s *Service) ListApprovals(ctx context.Context, status domain.ApprovalStatus, limit int) ([]domain.Approval, error) {
	approvals, err := s.store.ListApprovals(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	if approvals == nil {
		approvals = []domain.Approval{}
	}
	return approvals, nil
}

func parseDecision(decision string) (domain.ApprovalStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "approve", "approved":
		return domain.ApprovalStatusApproved, true
	case "reject", "rejected":
		return domain.ApprovalStatusRejected, true
	}
	return "", false
}

// DecideApproval approves or rejects a pending approval. A rejected run
// stays suspended; an approved one continues in the background when
// req.Resume is set.
func (s *Service) DecideApproval(ctx context.Context, approvalID string, req domain.ApprovalDecisionRequest) (*domain.Approval, error) {
	status, ok := parseDecision(req.Decision)
	if !ok {
		return nil, domain.ErrInvalidDecision
	}

	approval, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	if approval == nil {
		return nil, domain.ErrApprovalNotFound
	}

	updated, err := s.store.DecideApprovalIfPending(ctx, approvalID, status, req.DecidedBy, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to decide approval: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: approval is %s", domain.ErrApprovalNotPending, approval.Status)
	}

	s.emit(ctx, approval.RunID, domain.EventTypeApprovalDecision, map[string]interface{}{
		"approval_id": approvalID,
		"decision":    status,
		"decided_by":  req.DecidedBy,
		"reason":      req.Reason,
	})
	s.logger.Info("approval decided", "approval_id", approvalID, "run_id", approval.RunID, "decision", status)

	if status == domain.ApprovalStatusApproved && req.Resume {
		if _, err := s.ContinueRunAsync(ctx, approval.RunID); err != nil {
			s.logger.Warn("failed to resume run after approval", "run_id", approval.RunID, "error", err)
		}
	}

	decided, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return decided, nil
}

// RunApprovalMaintenance expires stale pending approvals until ctx is done.
func (s *Service) RunApprovalMaintenance(ctx context.Context) {
	interval := s.cfg.ApprovalSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepStaleApprovals(ctx); err != nil {
				s.logger.Error("approval sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) sweepStaleApprovals(ctx context.Context) error {
	if s.cfg.ApprovalStaleAfter <= 0 {
		return nil
	}
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.ApprovalStaleAfter)
	stale, err := s.store.ListStalePendingApprovals(sweepCtx, cutoff, 100)
	if err != nil {
		return fmt.Errorf("failed to list stale approvals: %w", err)
	}
	for _, approval := range stale {
		expired, err := s.store.ExpireApprovalIfPending(sweepCtx, approval.ApprovalID, "approval_stale")
		if err != nil {
			s.logger.Warn("failed to expire approval", "approval_id", approval.ApprovalID, "error", err)
			continue
		}
		if !expired {
			continue
		}
		s.emit(sweepCtx, approval.RunID, domain.EventTypeApprovalDecision, map[string]interface{}{
			"approval_id": approval.ApprovalID,
			"decision":    domain.ApprovalStatusExpired,
			"reason":      "approval_stale",
		})
		s.logger.Info("approval expired", "approval_id", approval.ApprovalID, "run_id", approval.RunID)
	}
	return nil
}
