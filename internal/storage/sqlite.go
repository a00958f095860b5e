package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added recency index on member_activity(member_id, created_at)
const currentSchemaVersion = 1

// SQLiteEngine is the real backend. It runs on a single connection since
// SQLite allows one writer at a time.
type SQLiteEngine struct {
	*commandCache

	db *sql.DB

	mu     sync.Mutex
	stmts  map[string]*sql.Stmt
	closed bool
}

var _ Engine = (*SQLiteEngine)(nil)

// OpenSQLite creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign keys declared but not enforced, matching the memory backend
//
// This function is idempotent - safe to call multiple times on one path.
func OpenSQLite(ctx context.Context, path string, tables []Table) (*SQLiteEngine, error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	eng, err := newSQLiteEngine(ctx, db, tables)
	if err != nil {
		db.Close()
		return nil, err
	}
	return eng, nil
}

// newSQLiteEngine applies the schema to an open connection.
func newSQLiteEngine(ctx context.Context, db *sql.DB, tables []Table) (*SQLiteEngine, error) {
	if err := validateSchema(tables); err != nil {
		return nil, &SchemaError{Backend: BackendSQLite, Err: err}
	}
	if err := applySchema(ctx, db, tables); err != nil {
		return nil, &SchemaError{Backend: BackendSQLite, Err: err}
	}
	return &SQLiteEngine{
		commandCache: newCommandCache(tables),
		db:           db,
		stmts:        make(map[string]*sql.Stmt),
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = OFF",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(ctx context.Context, db *sql.DB, tables []Table) error {
	if _, err := db.ExecContext(ctx, SchemaSQL(tables)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if err := runMigrations(ctx, db, tables); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB, tables []Table) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 && hasTable(tables, "member_activity") {
		// Databases created before v1 only had the single-column indexes.
		if _, err := db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_member_activity_recent
			ON member_activity(member_id, created_at)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func hasTable(tables []Table, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Prepare implements Engine. The SQL statement is prepared once per template.
func (s *SQLiteEngine) Prepare(template string) (*Statement, error) {
	cmd, err := s.command(template)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.stmts[template]; !ok {
		stmt, err := s.db.Prepare(template)
		if err != nil {
			return nil, fmt.Errorf("prepare statement: %w", err)
		}
		s.stmts[template] = stmt
	}
	return &Statement{cmd: cmd, ex: s}, nil
}

// Backend implements Engine.
func (s *SQLiteEngine) Backend() Backend { return BackendSQLite }

// DB returns the underlying connection. Tests only.
func (s *SQLiteEngine) DB() *sql.DB { return s.db }

// Close closes prepared statements and the connection.
func (s *SQLiteEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = nil
	return s.db.Close()
}

func (s *SQLiteEngine) backend() Backend { return BackendSQLite }

func (s *SQLiteEngine) stmt(cmd *Command) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	stmt, ok := s.stmts[cmd.Template]
	if !ok {
		return nil, fmt.Errorf("statement not prepared: %q", cmd.Template)
	}
	return stmt, nil
}

func (s *SQLiteEngine) exec(ctx context.Context, cmd *Command, vals []any) (Result, error) {
	stmt, err := s.stmt(cmd)
	if err != nil {
		return Result{}, err
	}
	res, err := stmt.ExecContext(ctx, driverArgs(cmd, vals)...)
	if err != nil {
		return Result{}, mapSQLiteError(cmd, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("rows affected: %w", err)
	}
	return Result{RowsAffected: n}, nil
}

func (s *SQLiteEngine) query(ctx context.Context, cmd *Command, vals []any) ([]Row, error) {
	stmt, err := s.stmt(cmd)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, driverArgs(cmd, vals)...)
	if err != nil {
		return nil, mapSQLiteError(cmd, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeScanned(raw[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// driverArgs forwards bound values using the template's placeholder style.
func driverArgs(cmd *Command, vals []any) []any {
	if !cmd.Named {
		return vals
	}
	seen := make(map[string]bool)
	var out []any
	for i, p := range cmd.Placeholders() {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, sql.Named(p.Name, vals[i]))
	}
	return out
}

// mapSQLiteError wraps constraint violations in ErrConstraint. The driver's
// error type only exists in cgo builds, so the message is matched instead.
func mapSQLiteError(cmd *Command, err error) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return fmt.Errorf("%s %s: %w", cmd.Verb, cmd.Table, err)
}
