// Package storage provides the dual-mode persistence engine for member data.
//
// Callers obtain an Engine once per process (see Provider) and issue
// statements through a single contract:
//
//	stmt, err := eng.Prepare("SELECT * FROM members WHERE email = ?")
//	row, err := stmt.Get(ctx, "ada@example.com")
//
// # Backends
//
//   - SQLite: github.com/mattn/go-sqlite3 against a single database file.
//   - Memory: typed in-process collections keyed by primary key, used when the
//     sqlite driver cannot be loaded or the database directory is not writable.
//
// Open picks the backend once. Both backends accept the same closed
// vocabulary of statement templates and return the same rows, so nothing
// downstream inspects Engine.Backend except for diagnostics.
//
// # Statement Vocabulary
//
//   - INSERT [OR IGNORE | OR REPLACE] INTO t (cols) VALUES (placeholders)
//   - UPDATE t SET c = ?, ... WHERE c = ? [AND ...]
//   - DELETE FROM t WHERE c = ? [AND ...]
//   - SELECT COUNT(*) [AS alias] FROM t [WHERE ...]
//   - SELECT * FROM t [WHERE ...] [ORDER BY c [ASC|DESC], ...] [LIMIT ?|n]
//
// Templates are parsed once into a Command and cached per engine. Anything
// outside the vocabulary fails Prepare with ErrUnsupportedStatement on both
// backends.
//
// # Values
//
// Row values are always int64, float64, string or nil. Timestamps are stored
// as unix milliseconds; time.Time arguments are converted on the way in.
//
// # Concurrency
//
// The SQLite backend runs on a single connection. The memory backend guards
// its collections with an RWMutex. Neither implements transactions;
// multi-statement sequences that must be atomic (leaderboard re-rank) are
// serialised by their owners.
package storage
