package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/membership/internal/storage"
)

// EachBackend runs fn once per storage backend, each against a fresh engine
// with the full schema. Callers must not branch on which one is active.
func EachBackend(t *testing.T, fn func(t *testing.T, eng storage.Engine)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory(t))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLite(t, filepath.Join(t.TempDir(), "test.db")))
	})
}

// NewMemory opens a memory engine closed at test cleanup.
func NewMemory(t *testing.T) storage.Engine {
	t.Helper()
	eng, err := storage.NewMemoryEngine(storage.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

// NewSQLite opens a SQLite engine at path closed at test cleanup.
func NewSQLite(t *testing.T, path string) storage.Engine {
	t.Helper()
	eng, err := storage.OpenSQLite(context.Background(), path, storage.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

// Count returns the row count of table.
func Count(t *testing.T, eng storage.Engine, table string) int64 {
	t.Helper()
	stmt, err := eng.Prepare("SELECT COUNT(*) AS count FROM " + table)
	require.NoError(t, err)
	row, err := stmt.Get(context.Background())
	require.NoError(t, err)
	return row["count"].(int64)
}
