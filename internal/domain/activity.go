package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityAction identifies the kind of user action an activity event records.
type ActivityAction string

// Recognized activity actions.
const (
	ActivityActionCreated   ActivityAction = "created"
	ActivityActionUpdated   ActivityAction = "updated"
	ActivityActionCommented ActivityAction = "commented"
	ActivityActionCompleted ActivityAction = "completed"
)

// ParseActivityAction converts a string into an ActivityAction.
// Returns ErrInvalidActivityAction for anything but the recognized actions.
func ParseActivityAction(s string) (ActivityAction, error) {
	action := ActivityAction(s)
	if !action.IsValid() {
		return "", ErrInvalidActivityAction
	}
	return action, nil
}

// IsValid reports whether the action is one of the recognized actions.
func (a ActivityAction) IsValid() bool {
	switch a {
	case ActivityActionCreated, ActivityActionUpdated,
		ActivityActionCommented, ActivityActionCompleted:
		return true
	default:
		return false
	}
}

// DisplayVerb returns the human-readable verb phrase for the action, used
// when rendering activity feed lines.
func (a ActivityAction) DisplayVerb() string {
	switch a {
	case ActivityActionCreated:
		return "created a task"
	case ActivityActionUpdated:
		return "updated a task"
	case ActivityActionCommented:
		return "commented on a task"
	case ActivityActionCompleted:
		return "marked a task as completed"
	default:
		return string(a)
	}
}

// Common validation errors for ActivityEvent
var (
	ErrEmptyActivityID      = errors.New("activity event ID cannot be empty")
	ErrEmptyActivityActorID = errors.New("activity event actor ID cannot be empty")
	ErrEmptyActivityTaskID  = errors.New("activity event task ID cannot be empty")
)

// ActivityEvent is an immutable, append-only record of a user action on a
// task. Events are owned solely by the activity store and are never mutated
// or deleted.
type ActivityEvent struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   uuid.UUID      `json:"actor_id"`
	TaskID    uuid.UUID      `json:"task_id"`
	Action    ActivityAction `json:"action"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewActivityEvent creates a new ActivityEvent for the given actor, task and
// action, timestamped at creation. Returns an error if validation fails.
func NewActivityEvent(actorID, taskID uuid.UUID, action ActivityAction) (*ActivityEvent, error) {
	event := &ActivityEvent{
		ID:        uuid.New(),
		ActorID:   actorID,
		TaskID:    taskID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks if the ActivityEvent has valid data.
// Returns an error if any field fails validation.
func (e *ActivityEvent) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyActivityID
	}

	if e.ActorID == uuid.Nil {
		return ErrEmptyActivityActorID
	}

	if e.TaskID == uuid.Nil {
		return ErrEmptyActivityTaskID
	}

	if !e.Action.IsValid() {
		return ErrInvalidActivityAction
	}

	return nil
}

// FeedLine renders the human-readable activity feed line for an action,
// e.g. "alice created a task on Fix login bug".
func FeedLine(actorName string, action ActivityAction, taskTitle string) string {
	return fmt.Sprintf("%s %s on %s", actorName, action.DisplayVerb(), taskTitle)
}
