package toolerr

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTool   = errors.New("duplicate tool name")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrInvalidArgs     = errors.New("tool invalid args")
	ErrMissingExecutor = errors.New("confirmation executor missing")
	ErrAlreadyResolved = errors.New("confirmation already resolved")
	ErrPendingNotFound = errors.New("pending confirmation not found")
	ErrPendingExpired  = errors.New("pending confirmation expired")
	ErrInvalidSchedule = errors.New("invalid schedule trigger")
	ErrNoActiveAgent   = errors.New("no active agent context")
)

// ValidationError names the first argument field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgs }

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
