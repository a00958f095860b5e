package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedStatement is returned by Prepare for templates outside the
	// statement vocabulary, or that reference unknown tables or columns.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrConstraint is returned when a write violates a primary key, UNIQUE or
	// NOT NULL constraint. SQLite and memory backends both wrap it.
	ErrConstraint = errors.New("constraint failed")

	// ErrClosed is returned by any operation on a closed engine.
	ErrClosed = errors.New("storage engine is closed")

	// ErrBinding is returned when statement arguments do not match the
	// template's placeholders.
	ErrBinding = errors.New("invalid statement arguments")

	// ErrWrongMethod is returned when Run is used on a query, or Get/All on a
	// write.
	ErrWrongMethod = errors.New("wrong statement method")
)

// SchemaError reports a failure to create the schema. It is fatal: an engine
// that returns it from Open is unusable.
type SchemaError struct {
	Backend Backend
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("create %s schema: %v", e.Backend, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func unsupported(template, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %q", ErrUnsupportedStatement, fmt.Sprintf(format, args...), template)
}
