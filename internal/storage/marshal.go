package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeJSON converts a structured value to TEXT for a JSON column.
// HTML escaping is disabled so stored text matches the caller's strings.
// A nil value encodes as "null".
func EncodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// DecodeJSON parses a JSON column value into dst. NULL and empty text leave
// dst untouched.
func DecodeJSON(raw any, dst any) error {
	s, ok := raw.(string)
	if !ok || s == "" {
		if raw != nil && !ok {
			return fmt.Errorf("decode json column: want text, got %T", raw)
		}
		return nil
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

// String returns the column as text, or "" when NULL or not text.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// NullString returns nil for NULL, else the text value.
func (r Row) NullString(col string) *string {
	s, ok := r[col].(string)
	if !ok {
		return nil
	}
	return &s
}

// Int returns the column as an integer. REAL values are truncated.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Float returns the column as a float.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool reads an INTEGER flag column.
func (r Row) Bool(col string) bool {
	return r.Int(col) != 0
}
