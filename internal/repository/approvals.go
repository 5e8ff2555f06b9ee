package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

const approvalColumns = `approval_id, run_id, step_index, action_type, summary, payload, status,
	created_by, created_at, decided_at, decided_by, reason`

// CreateApproval creates a new approval.
func (s *SQLiteStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	approval.CreatedAt = utc(approval.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (`+approvalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		approval.ApprovalID, approval.RunID, approval.StepIndex, approval.ActionType,
		nullString(approval.Summary), nullStringBytes(approval.Payload), approval.Status,
		nullString(approval.CreatedBy), approval.CreatedAt, nullTime(approval.DecidedAt),
		nullString(approval.DecidedBy), nullString(approval.Reason))
	return err
}

func scanApproval(row rowScanner) (*domain.Approval, error) {
	var ap domain.Approval
	var summary, payload, createdBy, decidedBy, reason sql.NullString
	var decidedAt sql.NullTime
	if err := row.Scan(&ap.ApprovalID, &ap.RunID, &ap.StepIndex, &ap.ActionType, &summary, &payload,
		&ap.Status, &createdBy, &ap.CreatedAt, &decidedAt, &decidedBy, &reason); err != nil {
		return nil, err
	}
	ap.Summary = summary.String
	if payload.Valid {
		ap.Payload = json.RawMessage(payload.String)
	}
	ap.CreatedBy = createdBy.String
	if decidedAt.Valid {
		ap.DecidedAt = &decidedAt.Time
	}
	ap.DecidedBy = decidedBy.String
	ap.Reason = reason.String
	return &ap, nil
}

// GetApproval retrieves an approval by ID. A missing approval returns nil, nil.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	ap, err := scanApproval(s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE approval_id = ?`, approvalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ap, nil
}

// ListApprovals returns approvals newest first, optionally filtered by status.
func (s *SQLiteStore) ListApprovals(ctx context.Context, status domain.ApprovalStatus, limit int) ([]domain.Approval, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + approvalColumns + ` FROM approvals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	return s.queryApprovals(ctx, query, args...)
}

// ListStalePendingApprovals returns pending approvals created before cutoff,
// oldest first.
func (s *SQLiteStore) ListStalePendingApprovals(ctx context.Context, cutoff time.Time, limit int) ([]domain.Approval, error) {
	return s.queryApprovals(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ?`,
		domain.ApprovalStatusPending, cutoff.UTC(), limit)
}

func (s *SQLiteStore) queryApprovals(ctx context.Context, query string, args ...any) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Approval{}
	for rows.Next() {
		ap, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ap)
	}
	return out, rows.Err()
}

// DecideApprovalIfPending moves a pending approval to status. It reports
// false when the approval was already decided or expired.
func (s *SQLiteStore) DecideApprovalIfPending(ctx context.Context, approvalID string, status domain.ApprovalStatus, decidedBy, reason string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, decided_at = ?, decided_by = ?, reason = ? WHERE approval_id = ? AND status = ?`,
		status, now, nullString(decidedBy), nullString(reason), approvalID, domain.ApprovalStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpireApprovalIfPending marks a pending approval expired.
func (s *SQLiteStore) ExpireApprovalIfPending(ctx context.Context, approvalID string, reason string) (bool, error) {
	return s.DecideApprovalIfPending(ctx, approvalID, domain.ApprovalStatusExpired, "", reason)
}
