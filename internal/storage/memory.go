package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// memRow is a stored record. seq orders rows by insertion the way SQLite's
// rowid does; a replaced row gets a fresh seq.
type memRow struct {
	seq    uint64
	values Row
}

// memTable is one typed collection keyed by primary key.
type memTable struct {
	def  *Table
	rows map[string]*memRow
}

// MemoryEngine is the degraded backend: every table lives in process memory.
type MemoryEngine struct {
	*commandCache

	mu     sync.RWMutex
	tables map[string]*memTable
	seq    uint64
	closed bool
}

var _ Engine = (*MemoryEngine)(nil)

// memoryHandler implements one verb against the in-process collections.
// Callers hold the engine lock in the mode the verb needs.
type memoryHandler func(m *MemoryEngine, t *memTable, cmd *Command, vals []any) (Result, []Row, error)

var memoryHandlers = map[Verb]memoryHandler{
	VerbInsert: (*MemoryEngine).insert,
	VerbUpdate: (*MemoryEngine).update,
	VerbDelete: (*MemoryEngine).deleteRows,
	VerbCount:  (*MemoryEngine).count,
	VerbSelect: (*MemoryEngine).selectRows,
}

// NewMemoryEngine validates the schema and creates empty collections.
func NewMemoryEngine(tables []Table) (*MemoryEngine, error) {
	if err := validateSchema(tables); err != nil {
		return nil, &SchemaError{Backend: BackendMemory, Err: err}
	}
	cache := newCommandCache(tables)
	m := &MemoryEngine{commandCache: cache, tables: make(map[string]*memTable, len(tables))}
	for name, def := range cache.tables {
		m.tables[name] = &memTable{def: def, rows: make(map[string]*memRow)}
	}
	return m, nil
}

// Prepare implements Engine.
func (m *MemoryEngine) Prepare(template string) (*Statement, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	cmd, err := m.command(template)
	if err != nil {
		return nil, err
	}
	return &Statement{cmd: cmd, ex: m}, nil
}

// Backend implements Engine.
func (m *MemoryEngine) Backend() Backend { return BackendMemory }

// Close drops all data. Closing twice is a no-op.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.tables = nil
	return nil
}

func (m *MemoryEngine) backend() Backend { return BackendMemory }

func (m *MemoryEngine) exec(ctx context.Context, cmd *Command, vals []any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res, _, err := m.dispatch(cmd, vals)
	return res, err
}

func (m *MemoryEngine) query(ctx context.Context, cmd *Command, vals []any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, rows, err := m.dispatch(cmd, vals)
	return rows, err
}

func (m *MemoryEngine) dispatch(cmd *Command, vals []any) (Result, []Row, error) {
	if m.closed {
		return Result{}, nil, ErrClosed
	}
	handler, ok := memoryHandlers[cmd.Verb]
	if !ok {
		return Result{}, nil, unsupported(cmd.Template, "no handler for %s", cmd.Verb)
	}
	return handler(m, m.tables[cmd.Table], cmd, vals)
}

func (m *MemoryEngine) insert(t *memTable, cmd *Command, vals []any) (Result, []Row, error) {
	row := make(Row, len(t.def.Columns))
	for _, c := range t.def.Columns {
		row[c.Name] = c.Default
	}
	for i, col := range cmd.Columns {
		c, _ := t.def.Column(col)
		row[col] = applyAffinity(c.Type, vals[i])
	}
	for _, c := range t.def.Columns {
		if c.NotNull && row[c.Name] == nil {
			// REPLACE falls back to the column default, as SQLite does.
			if cmd.Conflict == ConflictReplace && c.Default != nil {
				row[c.Name] = c.Default
				continue
			}
			if cmd.Conflict == ConflictIgnore {
				return Result{}, nil, nil
			}
			return Result{}, nil, fmt.Errorf("%w: NOT NULL constraint failed: %s.%s", ErrConstraint, t.def.Name, c.Name)
		}
	}

	key := t.key(row)
	conflicts := t.conflicts(key, row)
	if len(conflicts) > 0 {
		switch cmd.Conflict {
		case ConflictIgnore:
			return Result{}, nil, nil
		case ConflictAbort:
			return Result{}, nil, fmt.Errorf("%w: %s", ErrConstraint, conflicts[0].reason)
		case ConflictReplace:
			for _, c := range conflicts {
				delete(t.rows, c.key)
			}
		}
	}
	m.seq++
	t.rows[key] = &memRow{seq: m.seq, values: row}
	return Result{RowsAffected: 1}, nil, nil
}

func (m *MemoryEngine) update(t *memTable, cmd *Command, vals []any) (Result, []Row, error) {
	setVals := vals[len(cmd.Values) : len(cmd.Values)+len(cmd.Set)]
	whereVals := vals[len(cmd.Values)+len(cmd.Set):]

	targets := t.scan(cmd.Where, whereVals)
	for _, r := range targets {
		updated := r.values.clone()
		for i, a := range cmd.Set {
			c, _ := t.def.Column(a.Column)
			v := applyAffinity(c.Type, setVals[i])
			if c.NotNull && v == nil {
				return Result{}, nil, fmt.Errorf("%w: NOT NULL constraint failed: %s.%s", ErrConstraint, t.def.Name, c.Name)
			}
			updated[a.Column] = v
		}
		oldKey := t.key(r.values)
		newKey := t.key(updated)
		for _, c := range t.conflicts(newKey, updated) {
			if c.key != oldKey {
				return Result{}, nil, fmt.Errorf("%w: %s", ErrConstraint, c.reason)
			}
		}
		if newKey != oldKey {
			delete(t.rows, oldKey)
		}
		t.rows[newKey] = &memRow{seq: r.seq, values: updated}
	}
	return Result{RowsAffected: int64(len(targets))}, nil, nil
}

func (m *MemoryEngine) deleteRows(t *memTable, cmd *Command, vals []any) (Result, []Row, error) {
	targets := t.scan(cmd.Where, vals)
	for _, r := range targets {
		delete(t.rows, t.key(r.values))
	}
	return Result{RowsAffected: int64(len(targets))}, nil, nil
}

func (m *MemoryEngine) count(t *memTable, cmd *Command, vals []any) (Result, []Row, error) {
	n := len(t.scan(cmd.Where, vals))
	return Result{}, []Row{{cmd.CountAlias: int64(n)}}, nil
}

func (m *MemoryEngine) selectRows(t *memTable, cmd *Command, vals []any) (Result, []Row, error) {
	whereVals := vals[:len(cmd.Where)]
	matched := t.scan(cmd.Where, whereVals)

	if len(cmd.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range cmd.OrderBy {
				c := compareValues(matched[i].values[o.Column], matched[j].values[o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	limit, err := limitFor(cmd, vals)
	if err != nil {
		return Result{}, nil, err
	}
	if limit >= 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	out := make([]Row, len(matched))
	for i, r := range matched {
		out[i] = r.values.clone()
	}
	return Result{}, out, nil
}

// scan returns matching rows in insertion order.
func (t *memTable) scan(where []Condition, vals []any) []*memRow {
	out := make([]*memRow, 0, len(t.rows))
	for _, r := range t.rows {
		ok := true
		for i, w := range where {
			c, _ := t.def.Column(w.Column)
			if !matches(w.Op, r.values[w.Column], applyAffinity(c.Type, vals[i])) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (t *memTable) key(row Row) string {
	parts := make([]string, len(t.def.PrimaryKey))
	for i, col := range t.def.PrimaryKey {
		parts[i] = fmt.Sprintf("%T:%v", row[col], row[col])
	}
	return strings.Join(parts, "\x00")
}

type conflict struct {
	key    string
	reason string
}

// conflicts lists stored rows that collide with row on the primary key or a
// UNIQUE column. NULLs never collide.
func (t *memTable) conflicts(key string, row Row) []conflict {
	var out []conflict
	if _, ok := t.rows[key]; ok {
		out = append(out, conflict{key: key, reason: fmt.Sprintf("UNIQUE constraint failed: %s.%s",
			t.def.Name, strings.Join(t.def.PrimaryKey, ", "+t.def.Name+"."))})
	}
	for _, c := range t.def.Columns {
		if !c.Unique || row[c.Name] == nil {
			continue
		}
		for k, r := range t.rows {
			if k == key {
				continue
			}
			if compareValues(r.values[c.Name], row[c.Name]) == 0 {
				out = append(out, conflict{key: k, reason: fmt.Sprintf("UNIQUE constraint failed: %s.%s", t.def.Name, c.Name)})
			}
		}
	}
	return out
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
