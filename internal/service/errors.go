// Package service provides application-level orchestration over the stores:
// the task state machine, task creation and commenting, and the dashboard
// aggregation. Services own transactions; side effects (activity log,
// broadcast, email) run through the notification dispatcher after the
// authoritative write commits.
package service

import (
	"errors"
	"fmt"

	"github.com/cmorrow/taskhub-api/internal/store"
)

// Common sentinel errors used across service implementations. Callers check
// these with errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUserNotFound indicates that a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrAssigneeNotDeveloper indicates a task assignment targeted a user
	// who does not hold the Developer role.
	ErrAssigneeNotDeveloper = errors.New("task assignees must be developers")
)

// TaskServiceError wraps unexpected errors from the task service with
// operation context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task",
	// "propose_transition")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// newTaskServiceError wraps err with operation context. Known sentinels pass
// through unwrapped so callers can match them directly; store-level not-found
// errors are mapped to their service-level equivalents.
func newTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAssigneeNotDeveloper):
		return err
	case errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, store.ErrUserNotFound):
		return ErrUserNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
