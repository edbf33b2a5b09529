// Package domain defines the core business entities and rules.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the requesting user has no relationship
	// to the task (neither creator nor assignee).
	ErrForbidden = errors.New("user is not the task creator or an assignee")

	// ErrInvalidTransition is returned when the proposed status is outside
	// the requester's role-permitted set.
	ErrInvalidTransition = errors.New("status not permitted for user role")

	// ErrInvalidRole is returned when a role string is not one of the
	// recognized roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidTaskStatus is returned when a task status is not one of the
	// recognized statuses.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskPriority is returned when a task priority is not one of
	// the recognized priorities.
	ErrInvalidTaskPriority = errors.New("invalid task priority")

	// ErrInvalidActivityAction is returned when an activity action is not one
	// of the recognized action kinds.
	ErrInvalidActivityAction = errors.New("invalid activity action")
)
