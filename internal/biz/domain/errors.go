package domain

import "errors"

var (
	// ErrValidation marks user-correctable input problems
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a record id does not exist
	ErrNotFound = errors.New("not found")
	// ErrMalformed marks command text that does not match the grammar
	ErrMalformed = errors.New("malformed command")
	// ErrUnauthorized marks commands from senders outside the admin set
	ErrUnauthorized = errors.New("unauthorized")
)

// StoreError wraps a failure of the underlying index
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
