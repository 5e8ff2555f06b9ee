package trust

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "trust.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func TestStoreRecordIsNormalisedUnion(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Record(ctx, "ws1", " Notepad.EXE ", "calc.exe", ""))
			require.NoError(t, s.Record(ctx, "ws1", "notepad.exe"))

			apps, err := s.List(ctx, "ws1")
			require.NoError(t, err)
			assert.Equal(t, []string{"calc.exe", "notepad.exe"}, apps)

			other, err := s.List(ctx, "ws2")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Record(ctx, "", "notepad.exe"))
			require.NoError(t, s.Reset(ctx, "default"))
			require.NoError(t, s.Reset(ctx, "never-used"))

			apps, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, apps)
		})
	}
}

func TestStoreConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for _, app := range []string{"a.exe", "b.exe", "a.exe", "c.exe"} {
				wg.Add(1)
				go func(app string) {
					defer wg.Done()
					assert.NoError(t, s.Record(ctx, "ws", app))
				}(app)
			}
			wg.Wait()

			apps, err := s.List(ctx, "ws")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.exe", "b.exe", "c.exe"}, apps)
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"notepad.exe"}, "  NOTEPAD.exe"))
	assert.False(t, Contains(nil, "notepad.exe"))
}
