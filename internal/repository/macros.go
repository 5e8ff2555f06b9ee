package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// macroTimeFormat is fixed width so the text columns sort chronologically.
const macroTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SaveMacro inserts or replaces a macro keyed by its ID.
func (s *SQLiteStore) SaveMacro(ctx context.Context, m *domain.Macro) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode macro: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO macros (macro_id, name, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(macro_id) DO UPDATE SET name = excluded.name, body = excluded.body, updated_at = excluded.updated_at`,
		m.ID, m.Name, string(body), m.CreatedAt.UTC().Format(macroTimeFormat), m.UpdatedAt.UTC().Format(macroTimeFormat))
	return err
}

// GetMacro retrieves a macro by ID. A missing macro returns nil, nil.
func (s *SQLiteStore) GetMacro(ctx context.Context, id string) (*domain.Macro, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM macros WHERE macro_id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.Macro
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("failed to decode macro: %w", err)
	}
	return &m, nil
}

// ListMacros returns all macros, most recently updated first.
func (s *SQLiteStore) ListMacros(ctx context.Context) ([]domain.Macro, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM macros ORDER BY updated_at DESC, macro_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	macros := []domain.Macro{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var m domain.Macro
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("failed to decode macro: %w", err)
		}
		macros = append(macros, m)
	}
	return macros, rows.Err()
}

// DeleteMacro removes a macro and reports whether it existed.
func (s *SQLiteStore) DeleteMacro(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM macros WHERE macro_id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
