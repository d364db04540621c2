package domain

import (
	"errors"
	"fmt"
)

// Plan engine error taxonomy. Addressing errors abort a single operation
// without partial mutation.
var (
	ErrPlanRange    = errors.New("plan range error")
	ErrDayNotFound  = errors.New("day not found")
	ErrTaskNotFound = errors.New("task not found")
	ErrSchema       = errors.New("plan schema error")
	ErrPersistence  = errors.New("persistence error")
	ErrNoActivePlan = errors.New("no active training plan")
)

// PersistenceError reports a failed write-through. The optimistic in-memory
// state is not reverted when one of these is raised.
type PersistenceError struct {
	UserID string
	Fields []string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error for user %s (fields %v): %v", e.UserID, e.Fields, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func schemaErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrSchema}, args...)...)
}
