package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/membership/internal/logger"
)

// Backend names the active storage implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Engine is the uniform statement contract over either backend.
type Engine interface {
	// Prepare parses and validates a statement template. Repeated calls with
	// the same template return a statement sharing the cached Command.
	Prepare(template string) (*Statement, error)

	// Backend reports which implementation is active. For diagnostics only.
	Backend() Backend

	// Close releases the engine. It is safe to call more than once.
	Close() error
}

// executor is what a backend supplies to Statement.
type executor interface {
	backend() Backend
	exec(ctx context.Context, cmd *Command, vals []any) (Result, error)
	query(ctx context.Context, cmd *Command, vals []any) ([]Row, error)
}

// Statement is a prepared template bound to an engine.
type Statement struct {
	cmd *Command
	ex  executor
}

// Command returns the parsed descriptor.
func (s *Statement) Command() *Command {
	return s.cmd
}

// Run executes a write (INSERT, UPDATE, DELETE).
func (s *Statement) Run(ctx context.Context, args ...any) (Result, error) {
	if s.cmd.Verb.returnsRows() {
		return Result{}, fmt.Errorf("%w: Run on %s statement", ErrWrongMethod, s.cmd.Verb)
	}
	vals, err := bindArgs(s.cmd, args)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := s.ex.exec(ctx, s.cmd, vals)
	observe(s.ex.backend(), s.cmd.Verb, start, err)
	return res, err
}

// Get returns the first row of a query, or nil when there is none.
func (s *Statement) Get(ctx context.Context, args ...any) (Row, error) {
	rows, err := s.All(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// All returns every row of a query.
func (s *Statement) All(ctx context.Context, args ...any) ([]Row, error) {
	if !s.cmd.Verb.returnsRows() {
		return nil, fmt.Errorf("%w: Get/All on %s statement", ErrWrongMethod, s.cmd.Verb)
	}
	vals, err := bindArgs(s.cmd, args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.ex.query(ctx, s.cmd, vals)
	observe(s.ex.backend(), s.cmd.Verb, start, err)
	return rows, err
}

// commandCache parses each template once per engine.
type commandCache struct {
	mu     sync.Mutex
	tables map[string]*Table
	byText map[string]*Command
}

func newCommandCache(tables []Table) *commandCache {
	c := &commandCache{
		tables: make(map[string]*Table, len(tables)),
		byText: make(map[string]*Command),
	}
	for i := range tables {
		c.tables[tables[i].Name] = &tables[i]
	}
	return c
}

func (c *commandCache) command(template string) (*Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd, ok := c.byText[template]; ok {
		return cmd, nil
	}
	cmd, err := ParseCommand(template)
	if err != nil {
		return nil, err
	}
	if err := cmd.Bind(c.tables); err != nil {
		return nil, err
	}
	c.byText[template] = cmd
	return cmd, nil
}

// Options configures Open.
type Options struct {
	// Path is the SQLite database file.
	Path string
	// ForceMemory skips the SQLite probe.
	ForceMemory bool
	// Tables overrides Schema. Tests only.
	Tables []Table
	Logger *logger.Logger
}

// Open selects a backend and applies the schema. A SchemaError is fatal.
//
// SQLite is used when the driver can open a connection and the directory of
// opts.Path can be created and written. Otherwise the memory backend is used.
func Open(ctx context.Context, opts Options) (Engine, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	tables := opts.Tables
	if tables == nil {
		tables = Schema
	}

	reason := ""
	switch {
	case opts.ForceMemory:
		reason = "forced by configuration"
	case strings.TrimSpace(opts.Path) == "":
		reason = "no database path configured"
	default:
		if err := probeSQLite(ctx); err != nil {
			reason = fmt.Sprintf("sqlite driver unavailable: %v", err)
		} else if err := probeWritable(filepath.Dir(filepath.Clean(opts.Path))); err != nil {
			reason = fmt.Sprintf("database directory not writable: %v", err)
		}
	}

	if reason != "" {
		log.Warn("using in-memory storage backend", "reason", reason)
		return NewMemoryEngine(tables)
	}

	eng, err := OpenSQLite(ctx, opts.Path, tables)
	if err != nil {
		return nil, err
	}
	log.Info("using sqlite storage backend", "path", opts.Path)
	return eng, nil
}

// probeSQLite checks that the native driver can open a connection. Builds
// without cgo register a stub driver that fails here.
func probeSQLite(ctx context.Context) error {
	db, err := sql.Open(sqliteDriver, ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
