package storage

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Row is one result record keyed by column name.
type Row map[string]any

// Params is a named-field argument object. Passing a Params as the only
// argument binds @name/:name/$name placeholders by key.
type Params map[string]any

// Result reports the outcome of a write.
type Result struct {
	RowsAffected int64
}

// normalizeArg converts a caller-supplied value to one of int64, float64,
// string or nil.
func normalizeArg(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 %d overflows int64", ErrBinding, x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case time.Time:
		return x.UnixMilli(), nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBinding, err)
		}
		return normalizeArg(dv)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeArg(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrBinding, v)
}

// normalizeScanned converts a value read from the SQLite driver to the same
// representation the memory backend produces.
func normalizeScanned(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case float32:
		return float64(x)
	case time.Time:
		return x.UnixMilli()
	default:
		return v
	}
}

// bindArgs maps call arguments onto the command's placeholders in template
// order. It accepts positional values, sql.NamedArg values, or a single
// Params/map[string]any.
func bindArgs(cmd *Command, args []any) ([]any, error) {
	slots := cmd.Placeholders()

	if !cmd.Named {
		if len(args) != len(slots) {
			return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrBinding, len(slots), len(args))
		}
		out := make([]any, len(args))
		for i, a := range args {
			if _, ok := a.(sql.NamedArg); ok {
				return nil, fmt.Errorf("%w: named argument for positional placeholder", ErrBinding)
			}
			v, err := normalizeArg(a)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	named := make(map[string]any)
	for _, a := range args {
		switch x := a.(type) {
		case sql.NamedArg:
			named[x.Name] = x.Value
		case Params:
			for k, v := range x {
				named[strings.TrimLeft(k, "@:$")] = v
			}
		case map[string]any:
			for k, v := range x {
				named[strings.TrimLeft(k, "@:$")] = v
			}
		default:
			return nil, fmt.Errorf("%w: positional argument for named placeholder", ErrBinding)
		}
	}
	out := make([]any, len(slots))
	for i, p := range slots {
		raw, ok := named[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing parameter %q", ErrBinding, p.Name)
		}
		v, err := normalizeArg(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// limitFor returns the effective LIMIT, or -1 for none.
func limitFor(cmd *Command, vals []any) (int64, error) {
	if !cmd.HasLimit {
		return -1, nil
	}
	if cmd.LimitParam == nil {
		return cmd.LimitValue, nil
	}
	n, ok := vals[len(vals)-1].(int64)
	if !ok {
		if f, isFloat := vals[len(vals)-1].(float64); isFloat && f == math.Trunc(f) {
			n = int64(f)
		} else {
			return 0, fmt.Errorf("%w: LIMIT must be an integer", ErrBinding)
		}
	}
	return n, nil
}

// applyAffinity converts a normalised value the way SQLite column affinity
// would when storing it.
func applyAffinity(t ColumnType, v any) any {
	switch t {
	case Integer:
		switch x := v.(type) {
		case float64:
			if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
				return int64(x)
			}
			return x
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return applyAffinity(Integer, f)
			}
		}
	case Real:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	case Text:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10)
		case float64:
			s := strconv.FormatFloat(x, 'f', -1, 64)
			if !strings.ContainsAny(s, ".eE") {
				s += ".0"
			}
			return s
		}
	}
	return v
}

// typeClass orders values across storage classes: NULL < numeric < text.
func typeClass(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	default:
		return 2
	}
}

// compareValues compares two normalised values with SQLite's cross-type
// ordering and BINARY collation.
func compareValues(a, b any) int {
	ca, cb := typeClass(a), typeClass(b)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}
	switch ca {
	case 0:
		return 0
	case 1:
		ai, aInt := a.(int64)
		bi, bInt := b.(int64)
		if aInt && bInt {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

// matches evaluates one WHERE term. Comparisons against NULL never match.
func matches(op Operator, stored, param any) bool {
	if stored == nil || param == nil {
		return false
	}
	c := compareValues(stored, param)
	switch op {
	case OpEq:
		return c == 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}
