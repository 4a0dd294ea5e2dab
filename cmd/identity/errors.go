package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers switch on these with errors.Is; messages never carry
// passwords or elevation secrets.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

func describe(op string, kind error, detail string) string {
	if detail == "" {
		return fmt.Sprintf("%s: %v", op, kind)
	}
	return fmt.Sprintf("%s: %v: %s", op, kind, detail)
}

// OpError ties a failed store operation to one of the error kinds.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string { return describe(e.Op, e.Kind, e.Msg) }
func (e OpError) Unwrap() error { return e.Kind }

// ConflictError is returned when a username or email is already registered.
// Field is "username" or "email".
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string { return describe(e.Op, ErrConflict, e.Field) }
func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError is returned for a missing user or credential row.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string { return describe(e.Op, ErrNotFound, e.Resource) }
func (e NotFoundError) Unwrap() error { return ErrNotFound }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// ConflictField returns the clashing field of a ConflictError, or "".
func ConflictField(err error) string {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
