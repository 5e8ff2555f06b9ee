package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// GetFlag returns the raw value of a runtime flag, or nil when unset.
func (s *SQLiteStore) GetFlag(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM runtime_flags WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// SetFlag stores a runtime flag.
func (s *SQLiteStore) SetFlag(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runtime_flags (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC())
	return err
}
