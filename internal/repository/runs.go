package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

const runColumns = `run_id, status, task_name, actions, safety, workspace_id, created_by,
	pending_approval, stop_requested, error, created_at, updated_at, started_at, finished_at`

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	actions, err := json.Marshal(run.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	safety, err := json.Marshal(run.Safety)
	if err != nil {
		return fmt.Errorf("failed to encode safety: %w", err)
	}
	var pending []byte
	if run.PendingApproval != nil {
		if pending, err = json.Marshal(run.PendingApproval); err != nil {
			return fmt.Errorf("failed to encode pending approval: %w", err)
		}
	}
	run.CreatedAt = utc(run.CreatedAt)
	run.UpdatedAt = run.CreatedAt
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.TaskName, string(actions), string(safety), run.WorkspaceID,
		nullString(run.CreatedBy), nullStringBytes(pending), run.StopRequested, nullString(run.Error),
		run.CreatedAt, run.UpdatedAt, nullTime(run.StartedAt), nullTime(run.FinishedAt))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var actions, safety string
	var createdBy, pending, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.Status, &run.TaskName, &actions, &safety, &run.WorkspaceID,
		&createdBy, &pending, &run.StopRequested, &errMsg, &run.CreatedAt, &run.UpdatedAt,
		&startedAt, &finishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(actions), &run.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	if err := json.Unmarshal([]byte(safety), &run.Safety); err != nil {
		return nil, fmt.Errorf("failed to decode safety: %w", err)
	}
	if pending.Valid {
		var pa domain.PendingApproval
		if err := json.Unmarshal([]byte(pending.String), &pa); err != nil {
			return nil, fmt.Errorf("failed to decode pending approval: %w", err)
		}
		run.PendingApproval = &pa
	}
	run.CreatedBy = createdBy.String
	run.Error = errMsg.String
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// GetRun retrieves a run by ID together with its timeline and artifacts.
// A missing run returns nil, nil.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.Timeline, err = s.listTimeline(ctx, runID); err != nil {
		return nil, err
	}
	if run.Artifacts, err = s.listArtifacts(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. Timelines and
// artifacts are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SetRunStatus updates the status of a run unless it already reached a
// terminal status. It reports whether the row changed.
func (s *SQLiteStore) SetRunStatus(ctx context.Context, runID string, status domain.RunStatus, update domain.RunUpdate) (bool, error) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{status, time.Now().UTC()}
	if update.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, update.StartedAt.UTC())
	}
	if update.FinishedAt != nil {
		sets = append(sets, "finished_at = ?")
		args = append(args, update.FinishedAt.UTC())
	}
	if update.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullString(*update.Error))
	}
	args = append(args, runID)
	for _, terminal := range domain.TerminalRunStatuses {
		args = append(args, terminal)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET `+strings.Join(sets, ", ")+` WHERE run_id = ? AND status NOT IN (?, ?, ?)`,
		args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetPendingApproval stores where a suspended run resumes. nil clears it.
func (s *SQLiteStore) SetPendingApproval(ctx context.Context, runID string, pending *domain.PendingApproval) error {
	var data []byte
	if pending != nil {
		var err error
		if data, err = json.Marshal(pending); err != nil {
			return fmt.Errorf("failed to encode pending approval: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET pending_approval = ?, updated_at = ? WHERE run_id = ?`,
		nullStringBytes(data), time.Now().UTC(), runID)
	return err
}

// SetStopRequested flags a run for cooperative cancellation.
func (s *SQLiteStore) SetStopRequested(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stop_requested = 1, updated_at = ? WHERE run_id = ?`,
		time.Now().UTC(), runID)
	return err
}

// AppendTimeline appends a step record to a run's timeline.
func (s *SQLiteStore) AppendTimeline(ctx context.Context, runID string, entry domain.TimelineEntry) error {
	action, err := json.Marshal(entry.Action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_timeline (run_id, step, type, status, started_at, finished_at, error, action) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, entry.Step, entry.Type, entry.Status, utc(entry.StartedAt), utc(entry.FinishedAt),
		nullString(entry.Error), string(action))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET updated_at = ? WHERE run_id = ?`, time.Now().UTC(), runID)
	return err
}

// AppendArtifact records a file produced by a step.
func (s *SQLiteStore) AppendArtifact(ctx context.Context, runID string, artifact domain.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_artifacts (run_id, type, file, step, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, artifact.Type, artifact.File, artifact.Step, utc(artifact.CreatedAt))
	return err
}

func (s *SQLiteStore) listTimeline(ctx context.Context, runID string) ([]domain.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, type, status, started_at, finished_at, error, action FROM run_timeline WHERE run_id = ? ORDER BY id ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.TimelineEntry{}
	for rows.Next() {
		var entry domain.TimelineEntry
		var errMsg, action sql.NullString
		if err := rows.Scan(&entry.Step, &entry.Type, &entry.Status, &entry.StartedAt, &entry.FinishedAt, &errMsg, &action); err != nil {
			return nil, err
		}
		entry.Error = errMsg.String
		if action.Valid && action.String != "null" {
			if err := json.Unmarshal([]byte(action.String), &entry.Action); err != nil {
				return nil, fmt.Errorf("failed to decode timeline action: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) listArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, file, step, created_at FROM run_artifacts WHERE run_id = ? ORDER BY id ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := []domain.Artifact{}
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.Type, &a.File, &a.Step, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// CreateEvent persists a run event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetEvents retrieves events for a run after afterTs (Unix ms), oldest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM run_events WHERE run_id = ?`
	args := []any{runID}
	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}
	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Ts, &e.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
