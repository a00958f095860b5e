package storage

import (
	"context"
	"path/filepath"
	"testing"
)

// eachBackend runs fn once per backend against a fresh engine with the full
// schema.
func eachBackend(t *testing.T, fn func(t *testing.T, eng Engine)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		eng, err := NewMemoryEngine(Schema)
		if err != nil {
			t.Fatalf("NewMemoryEngine() failed: %v", err)
		}
		t.Cleanup(func() { eng.Close() })
		fn(t, eng)
	})
	t.Run("sqlite", func(t *testing.T) {
		eng := createTestSQLite(t)
		fn(t, eng)
	})
}

func createTestSQLite(t *testing.T) *SQLiteEngine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	eng, err := OpenSQLite(context.Background(), path, Schema)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func mustPrepare(t *testing.T, eng Engine, template string) *Statement {
	t.Helper()
	stmt, err := eng.Prepare(template)
	if err != nil {
		t.Fatalf("Prepare(%q) failed: %v", template, err)
	}
	return stmt
}

func insertMember(t *testing.T, eng Engine, id, email string, createdAt int64) {
	t.Helper()
	stmt := mustPrepare(t, eng, "INSERT INTO members (id, email, full_name, created_at) VALUES (?, ?, ?, ?)")
	if _, err := stmt.Run(context.Background(), id, email, "Member "+id, createdAt); err != nil {
		t.Fatalf("insert member %s: %v", id, err)
	}
}
