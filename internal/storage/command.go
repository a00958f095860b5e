package storage

import (
	"regexp"
	"strconv"
	"strings"
)

// Verb is the operation a Command performs.
type Verb int

const (
	VerbInsert Verb = iota + 1
	VerbUpdate
	VerbDelete
	VerbCount
	VerbSelect
)

func (v Verb) String() string {
	switch v {
	case VerbInsert:
		return "insert"
	case VerbUpdate:
		return "update"
	case VerbDelete:
		return "delete"
	case VerbCount:
		return "count"
	case VerbSelect:
		return "select"
	default:
		return "unknown"
	}
}

// returnsRows reports whether the verb is read through Get/All.
func (v Verb) returnsRows() bool {
	return v == VerbCount || v == VerbSelect
}

// Conflict is the upsert policy of an INSERT.
type Conflict int

const (
	// ConflictAbort fails the insert with ErrConstraint (plain INSERT).
	ConflictAbort Conflict = iota
	// ConflictIgnore leaves the existing row untouched (INSERT OR IGNORE).
	ConflictIgnore
	// ConflictReplace overwrites the existing row (INSERT OR REPLACE).
	ConflictReplace
)

// Operator is a WHERE comparison.
type Operator string

const (
	OpEq  Operator = "="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
)

// Placeholder is one bound parameter slot. Name is empty for "?".
type Placeholder struct {
	Name string
}

// Assignment is one "col = ?" of an UPDATE.
type Assignment struct {
	Column string
	Value  Placeholder
}

// Condition is one "col op ?" term of a WHERE clause. Terms are ANDed.
type Condition struct {
	Column string
	Op     Operator
	Value  Placeholder
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Column string
	Desc   bool
}

// Command is the typed descriptor a statement template parses into.
type Command struct {
	Template string
	Verb     Verb
	Table    string
	Conflict Conflict

	// INSERT
	Columns []string
	Values  []Placeholder

	// UPDATE
	Set []Assignment

	Where   []Condition
	OrderBy []Ordering

	// LIMIT is either a literal (LimitValue) or a placeholder (LimitParam).
	HasLimit   bool
	LimitValue int64
	LimitParam *Placeholder

	// CountAlias is the result column of SELECT COUNT(*).
	CountAlias string

	// Named is true when the template uses @name/:name/$name placeholders.
	Named bool
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	insertRe     = regexp.MustCompile(`(?i)^INSERT(?: OR (IGNORE|REPLACE))? INTO (\w+) ?\(([^)]*)\) ?VALUES ?\(([^)]*)\)$`)
	updateRe     = regexp.MustCompile(`(?i)^UPDATE (\w+) SET (.+?) WHERE (.+)$`)
	deleteRe     = regexp.MustCompile(`(?i)^DELETE FROM (\w+) WHERE (.+)$`)
	countRe      = regexp.MustCompile(`(?i)^SELECT COUNT\(\*\)(?: AS (\w+))? FROM (\w+)(?: WHERE (.+))?$`)
	selectRe     = regexp.MustCompile(`(?i)^SELECT \* FROM (\w+)(?: WHERE (.+?))?(?: ORDER BY (.+?))?(?: LIMIT (\S+))?$`)
	conditionRe  = regexp.MustCompile(`^(\w+) ?(<=|>=|=|<|>) ?(\?|[@:$]\w+)$`)
	assignRe     = regexp.MustCompile(`^(\w+) ?= ?(\?|[@:$]\w+)$`)
	orderRe      = regexp.MustCompile(`(?i)^(\w+)(?: (ASC|DESC))?$`)
	andRe        = regexp.MustCompile(`(?i) AND `)
	identRe      = regexp.MustCompile(`^\w+$`)
)

// ParseCommand parses a statement template into a Command. It checks syntax
// only; Bind checks the command against a schema.
func ParseCommand(template string) (*Command, error) {
	norm := strings.TrimSpace(whitespaceRe.ReplaceAllString(template, " "))
	norm = strings.TrimSpace(strings.TrimSuffix(norm, ";"))

	var (
		cmd *Command
		err error
	)
	switch {
	case insertRe.MatchString(norm):
		cmd, err = parseInsert(template, insertRe.FindStringSubmatch(norm))
	case updateRe.MatchString(norm):
		cmd, err = parseUpdate(template, updateRe.FindStringSubmatch(norm))
	case deleteRe.MatchString(norm):
		m := deleteRe.FindStringSubmatch(norm)
		cmd = &Command{Template: template, Verb: VerbDelete, Table: m[1]}
		cmd.Where, err = parseWhere(template, m[2])
	case countRe.MatchString(norm):
		m := countRe.FindStringSubmatch(norm)
		cmd = &Command{Template: template, Verb: VerbCount, Table: m[2], CountAlias: m[1]}
		if cmd.CountAlias == "" {
			cmd.CountAlias = "COUNT(*)"
		}
		if m[3] != "" {
			cmd.Where, err = parseWhere(template, m[3])
		}
	case selectRe.MatchString(norm):
		cmd, err = parseSelect(template, selectRe.FindStringSubmatch(norm))
	default:
		return nil, unsupported(template, "unrecognised statement shape")
	}
	if err != nil {
		return nil, err
	}
	if err := cmd.checkPlaceholders(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseInsert(template string, m []string) (*Command, error) {
	cmd := &Command{Template: template, Verb: VerbInsert, Table: m[2]}
	switch strings.ToUpper(m[1]) {
	case "IGNORE":
		cmd.Conflict = ConflictIgnore
	case "REPLACE":
		cmd.Conflict = ConflictReplace
	}
	for _, col := range splitList(m[3]) {
		if !identRe.MatchString(col) {
			return nil, unsupported(template, "bad column %q", col)
		}
		cmd.Columns = append(cmd.Columns, col)
	}
	for _, v := range splitList(m[4]) {
		p, ok := parsePlaceholder(v)
		if !ok {
			return nil, unsupported(template, "VALUES accepts placeholders only, got %q", v)
		}
		cmd.Values = append(cmd.Values, p)
	}
	if len(cmd.Columns) == 0 || len(cmd.Columns) != len(cmd.Values) {
		return nil, unsupported(template, "%d columns for %d values", len(cmd.Columns), len(cmd.Values))
	}
	return cmd, nil
}

func parseUpdate(template string, m []string) (*Command, error) {
	cmd := &Command{Template: template, Verb: VerbUpdate, Table: m[1]}
	for _, part := range splitList(m[2]) {
		am := assignRe.FindStringSubmatch(part)
		if am == nil {
			return nil, unsupported(template, "bad assignment %q", part)
		}
		p, _ := parsePlaceholder(am[2])
		cmd.Set = append(cmd.Set, Assignment{Column: am[1], Value: p})
	}
	var err error
	cmd.Where, err = parseWhere(template, m[3])
	return cmd, err
}

func parseSelect(template string, m []string) (*Command, error) {
	cmd := &Command{Template: template, Verb: VerbSelect, Table: m[1]}
	var err error
	if m[2] != "" {
		if cmd.Where, err = parseWhere(template, m[2]); err != nil {
			return nil, err
		}
	}
	if m[3] != "" {
		for _, part := range splitList(m[3]) {
			om := orderRe.FindStringSubmatch(part)
			if om == nil {
				return nil, unsupported(template, "bad ORDER BY term %q", part)
			}
			cmd.OrderBy = append(cmd.OrderBy, Ordering{
				Column: om[1],
				Desc:   strings.EqualFold(om[2], "DESC"),
			})
		}
	}
	if m[4] != "" {
		cmd.HasLimit = true
		if p, ok := parsePlaceholder(m[4]); ok {
			cmd.LimitParam = &p
		} else {
			n, perr := strconv.ParseInt(m[4], 10, 64)
			if perr != nil || n < 0 {
				return nil, unsupported(template, "bad LIMIT %q", m[4])
			}
			cmd.LimitValue = n
		}
	}
	return cmd, nil
}

func parseWhere(template, clause string) ([]Condition, error) {
	var conds []Condition
	for _, term := range andRe.Split(clause, -1) {
		term = strings.TrimSpace(term)
		cm := conditionRe.FindStringSubmatch(term)
		if cm == nil {
			return nil, unsupported(template, "bad WHERE term %q", term)
		}
		p, _ := parsePlaceholder(cm[3])
		conds = append(conds, Condition{Column: cm[1], Op: Operator(cm[2]), Value: p})
	}
	return conds, nil
}

func parsePlaceholder(s string) (Placeholder, bool) {
	s = strings.TrimSpace(s)
	if s == "?" {
		return Placeholder{}, true
	}
	if len(s) > 1 && strings.ContainsRune("@:$", rune(s[0])) && identRe.MatchString(s[1:]) {
		return Placeholder{Name: s[1:]}, true
	}
	return Placeholder{}, false
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Placeholders returns the parameter slots in template order.
func (c *Command) Placeholders() []Placeholder {
	var out []Placeholder
	out = append(out, c.Values...)
	for _, a := range c.Set {
		out = append(out, a.Value)
	}
	for _, w := range c.Where {
		out = append(out, w.Value)
	}
	if c.LimitParam != nil {
		out = append(out, *c.LimitParam)
	}
	return out
}

func (c *Command) checkPlaceholders() error {
	positional, named := 0, 0
	for _, p := range c.Placeholders() {
		if p.Name == "" {
			positional++
		} else {
			named++
		}
	}
	if positional > 0 && named > 0 {
		return unsupported(c.Template, "mixed positional and named placeholders")
	}
	c.Named = named > 0
	return nil
}

// Bind resolves the command against a schema, rejecting unknown tables and
// columns.
func (c *Command) Bind(tables map[string]*Table) error {
	t, ok := tables[c.Table]
	if !ok {
		return unsupported(c.Template, "unknown table %s", c.Table)
	}
	check := func(col string) error {
		if _, ok := t.Column(col); !ok {
			return unsupported(c.Template, "unknown column %s.%s", c.Table, col)
		}
		return nil
	}
	for _, col := range c.Columns {
		if err := check(col); err != nil {
			return err
		}
	}
	for _, a := range c.Set {
		if err := check(a.Column); err != nil {
			return err
		}
	}
	for _, w := range c.Where {
		if err := check(w.Column); err != nil {
			return err
		}
	}
	for _, o := range c.OrderBy {
		if err := check(o.Column); err != nil {
			return err
		}
	}
	return nil
}
