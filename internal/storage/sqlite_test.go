package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := OpenSQLite(ctx, path, Schema)
	require.NoError(t, err)
	insertMember(t, first, "m1", "ada@example.com", 1)
	require.NoError(t, first.Close())

	for i := 0; i < 3; i++ {
		again, err := OpenSQLite(ctx, path, Schema)
		require.NoError(t, err, "reopen %d", i)

		row, err := mustPrepare(t, again, "SELECT COUNT(*) AS count FROM members").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), row["count"])
		require.NoError(t, again.Close())
	}
}

func TestOpenSQLite_SetsSchemaVersion(t *testing.T) {
	eng := createTestSQLite(t)

	var version int
	require.NoError(t, eng.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err := eng.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_member_activity_recent",
	).Scan(&name)
	assert.NoError(t, err)
}

func TestOpenSQLite_CreatesEveryTable(t *testing.T) {
	eng := createTestSQLite(t)
	for _, table := range Schema {
		var name string
		err := eng.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table.Name,
		).Scan(&name)
		assert.NoError(t, err, "table %q", table.Name)
	}
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "/nonexistent/dir/test.db", Schema)
	assert.Error(t, err)
}

func TestNewSQLiteEngine_SchemaFailureIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS members").WillReturnError(errors.New("disk I/O error"))

	_, err = newSQLiteEngine(context.Background(), db, Schema)
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLiteEngine_MigrationFailureIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA user_version")).WillReturnError(errors.New("locked"))

	_, err = newSQLiteEngine(context.Background(), db, Schema)
	assert.True(t, IsSchemaError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mockEngine(t *testing.T) (*SQLiteEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLiteEngine{
		commandCache: newCommandCache(Schema),
		db:           db,
		stmts:        make(map[string]*sql.Stmt),
	}, mock
}

func TestSQLiteEngine_ExecutionErrorPropagates(t *testing.T) {
	eng, mock := mockEngine(t)
	tmpl := "INSERT INTO member_activity (id, member_id, activity_type, created_at) VALUES (?, ?, ?, ?)"
	mock.ExpectPrepare(regexp.QuoteMeta(tmpl)).
		ExpectExec().
		WillReturnError(errors.New("database is locked"))

	stmt, err := eng.Prepare(tmpl)
	require.NoError(t, err)

	_, err = stmt.Run(context.Background(), "a1", "m1", "post", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConstraint)
	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteEngine_ConstraintErrorMapped(t *testing.T) {
	eng, mock := mockEngine(t)
	tmpl := "INSERT INTO members (id, email, created_at) VALUES (?, ?, ?)"
	mock.ExpectPrepare(regexp.QuoteMeta(tmpl)).
		ExpectExec().
		WithArgs("m2", "ada@example.com", int64(1)).
		WillReturnError(errors.New("UNIQUE constraint failed: members.email"))

	stmt, err := eng.Prepare(tmpl)
	require.NoError(t, err)

	_, err = stmt.Run(context.Background(), "m2", "ada@example.com", 1)
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestSQLiteEngine_QueryErrorCounted(t *testing.T) {
	eng, mock := mockEngine(t)
	tmpl := "SELECT * FROM members WHERE id = ?"
	mock.ExpectPrepare(regexp.QuoteMeta(tmpl)).
		ExpectQuery().
		WillReturnError(errors.New("malformed"))

	before := testutil.ToFloat64(statementsTotal.WithLabelValues("sqlite", "select", "error"))

	stmt, err := eng.Prepare(tmpl)
	require.NoError(t, err)
	_, err = stmt.Get(context.Background(), "m1")
	require.Error(t, err)

	after := testutil.ToFloat64(statementsTotal.WithLabelValues("sqlite", "select", "error"))
	assert.Equal(t, before+1, after)
}

func TestSQLiteEngine_QueryRowsNormalised(t *testing.T) {
	eng, mock := mockEngine(t)
	tmpl := "SELECT * FROM members WHERE id = ?"
	rows := sqlmock.NewRows([]string{"id", "email", "created_at"}).
		AddRow([]byte("m1"), "ada@example.com", int64(7))
	mock.ExpectPrepare(regexp.QuoteMeta(tmpl)).ExpectQuery().WillReturnRows(rows)

	stmt, err := eng.Prepare(tmpl)
	require.NoError(t, err)
	row, err := stmt.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, Row{"id": "m1", "email": "ada@example.com", "created_at": int64(7)}, row)
}

func TestMetrics_CountsMemoryStatements(t *testing.T) {
	eng, err := NewMemoryEngine(Schema)
	require.NoError(t, err)
	defer eng.Close()

	before := testutil.ToFloat64(statementsTotal.WithLabelValues("memory", "insert", "ok"))
	insertMember(t, eng, "m1", "ada@example.com", 1)
	after := testutil.ToFloat64(statementsTotal.WithLabelValues("memory", "insert", "ok"))
	assert.Equal(t, before+1, after)
}
