package trust

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketWorkspaces = []byte("trusted_apps")

// BoltStore persists trusted apps in a bbolt file: one nested bucket per
// workspace, one key per app.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the trust database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("trust db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("trust: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketWorkspaces)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trust: init schema: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// List returns the trusted apps of a workspace in key order.
func (b *BoltStore) List(ctx context.Context, workspaceID string) ([]string, error) {
	out := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		ws := tx.Bucket(bucketWorkspaces).Bucket([]byte(workspaceKey(workspaceID)))
		if ws == nil {
			return nil
		}
		return ws.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("trust: list: %w", err)
	}
	return out, nil
}

// Record unions targets into the workspace bucket.
func (b *BoltStore) Record(ctx context.Context, workspaceID string, targets ...string) error {
	var apps []string
	for _, target := range targets {
		if app := Normalize(target); app != "" {
			apps = append(apps, app)
		}
	}
	if len(apps) == 0 {
		return nil
	}
	now := []byte(time.Now().UTC().Format(time.RFC3339))
	err := b.db.Update(func(tx *bolt.Tx) error {
		ws, err := tx.Bucket(bucketWorkspaces).CreateBucketIfNotExists([]byte(workspaceKey(workspaceID)))
		if err != nil {
			return err
		}
		for _, app := range apps {
			if ws.Get([]byte(app)) != nil {
				continue
			}
			if err := ws.Put([]byte(app), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trust: record: %w", err)
	}
	return nil
}

// Reset drops the workspace bucket.
func (b *BoltStore) Reset(ctx context.Context, workspaceID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketWorkspaces).DeleteBucket([]byte(workspaceKey(workspaceID)))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("trust: reset: %w", err)
	}
	return nil
}
