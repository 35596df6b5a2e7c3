package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// Lifecycle errors. All of them are recoverable by the caller except
// ErrStorage, which signals that the transaction was rolled back because the
// store itself failed.
var (
	ErrValidation          = errors.New("validation failed")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskExists          = errors.New("task already exists")
	ErrTaskNotClaimable    = errors.New("task not claimable")
	ErrTaskNotUnclaimable  = errors.New("task not unclaimable")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPauseReasonRequired = errors.New("pause reason required")
	ErrStorage             = errors.New("storage failure")
)

// TransitionError reports a status change that is not in the transition table.
type TransitionError struct {
	From models.TaskStatus
	To   models.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports malformed input. Problems lists every issue found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "validation failed: " + e.Problems[0]
	}
	return "validation failed:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// StorageError wraps a failure of the persistence collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) match.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Error classes, aligned with HTTP status families so a transport layer can
// map them directly.
const (
	ClassBadRequest = 400
	ClassNotFound   = 404
	ClassConflict   = 409
	ClassFatal      = 500
)

// ErrorClass maps a lifecycle error onto its transport class. Unknown errors
// are fatal.
func ErrorClass(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrTaskNotFound):
		return ClassNotFound
	case errors.Is(err, ErrTaskNotClaimable), errors.Is(err, ErrTaskNotUnclaimable):
		return ClassConflict
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPauseReasonRequired),
		errors.Is(err, ErrValidation), errors.Is(err, ErrTaskExists):
		return ClassBadRequest
	default:
		return ClassFatal
	}
}
