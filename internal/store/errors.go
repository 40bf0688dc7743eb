package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique or foreign key constraint.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned when a write violates a check constraint or a column range.
	ErrInvalid = errors.New("invalid")
)

// postgres error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOutOfRange   = "22003"
)

// ConstraintError wraps a store sentinel with the violated constraint name.
type ConstraintError struct {
	Err        error
	Constraint string
	cause      error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Constraint
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Err, e.cause}
}

// mapError translates driver errors into store sentinels. Other errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation, codeForeignKeyViolation:
		return &ConstraintError{Err: ErrConflict, Constraint: pqErr.Constraint, cause: err}
	case codeCheckViolation, codeNumericOutOfRange:
		return &ConstraintError{Err: ErrInvalid, Constraint: pqErr.Constraint, cause: err}
	default:
		return err
	}
}

// ConstraintOf returns the constraint name carried by err, if any.
func ConstraintOf(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}
