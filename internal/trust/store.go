// Package trust keeps the per-workspace set of applications that have
// already been launched, the basis for new-app risk detection.
package trust

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is a per-workspace set of normalised app identifiers. Record and
// Reset are idempotent; Record is a set union.
type Store interface {
	List(ctx context.Context, workspaceID string) ([]string, error)
	Record(ctx context.Context, workspaceID string, targets ...string) error
	Reset(ctx context.Context, workspaceID string) error
}

// Normalize returns the identifier stored for a launch target.
func Normalize(target string) string {
	return strings.ToLower(strings.TrimSpace(target))
}

// Contains reports whether target is trusted in the given list.
func Contains(trusted []string, target string) bool {
	key := Normalize(target)
	for _, t := range trusted {
		if t == key {
			return true
		}
	}
	return false
}

func workspaceKey(workspaceID string) string {
	if workspaceID == "" {
		return "default"
	}
	return workspaceID
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	apps map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: make(map[string]map[string]struct{})}
}

// List returns the trusted apps of a workspace in sorted order.
func (m *MemoryStore) List(ctx context.Context, workspaceID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.apps[workspaceKey(workspaceID)]
	out := make([]string, 0, len(set))
	for app := range set {
		out = append(out, app)
	}
	sort.Strings(out)
	return out, nil
}

// Record unions targets into the workspace set. Blank targets are ignored.
func (m *MemoryStore) Record(ctx context.Context, workspaceID string, targets ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := workspaceKey(workspaceID)
	for _, target := range targets {
		app := Normalize(target)
		if app == "" {
			continue
		}
		if m.apps[key] == nil {
			m.apps[key] = make(map[string]struct{})
		}
		m.apps[key][app] = struct{}{}
	}
	return nil
}

// Reset clears the workspace set.
func (m *MemoryStore) Reset(ctx context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.apps, workspaceKey(workspaceID))
	return nil
}
