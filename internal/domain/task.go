package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents where a task currently sits in its lifecycle.
type TaskStatus string

// Possible task status values. The string values are what gets persisted.
const (
	TaskStatusNotStarted TaskStatus = "Not Started"
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusReview     TaskStatus = "Review"
	TaskStatusSubmitted  TaskStatus = "Submitted"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// AllTaskStatuses lists every recognized status, in lifecycle display order.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusNotStarted,
		TaskStatusPending,
		TaskStatusInProgress,
		TaskStatusReview,
		TaskStatusSubmitted,
		TaskStatusCompleted,
	}
}

// ParseTaskStatus converts a string into a TaskStatus.
// Returns ErrInvalidTaskStatus for anything but the recognized statuses.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.IsValid() {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}

// IsValid reports whether the status is one of the recognized statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusNotStarted, TaskStatusPending, TaskStatusInProgress,
		TaskStatusReview, TaskStatusSubmitted, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// AllowedStatuses returns the set of target statuses a user with the given
// role may move a task to. Developers are limited to marking work in progress
// or submitting it; everyone else (project managers) may set any status.
//
// There is deliberately no transition graph beyond this role gate: a manager
// may move a task between any two statuses, including reopening a completed
// task.
func AllowedStatuses(role Role) []TaskStatus {
	switch role {
	case RoleDeveloper:
		return []TaskStatus{TaskStatusInProgress, TaskStatusSubmitted}
	case RoleProjectManager:
		return AllTaskStatuses()
	default:
		return nil
	}
}

// StatusAllowedForRole reports whether a user with the given role may set the
// given target status.
func StatusAllowedForRole(status TaskStatus, role Role) bool {
	for _, allowed := range AllowedStatuses(role) {
		if allowed == status {
			return true
		}
	}
	return false
}

// TaskPriority represents how urgent a task is.
type TaskPriority string

// Possible task priority values.
const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
	TaskPriorityUrgent TaskPriority = "Urgent"
)

// ParseTaskPriority converts a string into a TaskPriority.
// Returns ErrInvalidTaskPriority for anything but the recognized priorities.
func ParseTaskPriority(s string) (TaskPriority, error) {
	priority := TaskPriority(s)
	if !priority.IsValid() {
		return "", ErrInvalidTaskPriority
	}
	return priority, nil
}

// IsValid reports whether the priority is one of the recognized priorities.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// Rank returns the sort rank of the priority. Urgent sorts first.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityUrgent:
		return 1
	case TaskPriorityHigh:
		return 2
	case TaskPriorityMedium:
		return 3
	case TaskPriorityLow:
		return 4
	default:
		return 5
	}
}

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle     = errors.New("task title cannot be empty")
	ErrEmptyTaskCreatorID = errors.New("task creator ID cannot be empty")
	ErrEmptyTaskDueDate   = errors.New("task due date cannot be empty")
	ErrEmptyAssigneeID    = errors.New("assignee ID cannot be empty")
)

// Task represents a unit of work created by a project manager and worked on
// by assigned developers.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	CreatorID   uuid.UUID    `json:"creator_id"` // Immutable after creation
	AssigneeIDs []uuid.UUID  `json:"assignee_ids"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     time.Time    `json:"due_date"`
	ProjectLink string       `json:"project_link,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewTask creates a new Task owned by the given creator. The status starts at
// Not Started and the priority defaults to Medium when empty.
// Returns an error if validation fails.
func NewTask(
	creatorID uuid.UUID,
	title, description string,
	assigneeIDs []uuid.UUID,
	priority TaskPriority,
	dueDate time.Time,
	projectLink string,
) (*Task, error) {
	if priority == "" {
		priority = TaskPriorityMedium
	}

	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		CreatorID:   creatorID,
		AssigneeIDs: assigneeIDs,
		Status:      TaskStatusNotStarted,
		Priority:    priority,
		DueDate:     dueDate,
		ProjectLink: projectLink,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if t.CreatorID == uuid.Nil {
		return ErrEmptyTaskCreatorID
	}

	for _, id := range t.AssigneeIDs {
		if id == uuid.Nil {
			return ErrEmptyAssigneeID
		}
	}

	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	if !t.Priority.IsValid() {
		return ErrInvalidTaskPriority
	}

	if t.DueDate.IsZero() {
		return ErrEmptyTaskDueDate
	}

	return nil
}

// IsAssignee reports whether the given user is currently assigned to the task.
func (t *Task) IsAssignee(userID uuid.UUID) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanBeUpdatedBy reports whether the given user may propose a status change:
// they must be the task's creator or a current assignee.
func (t *Task) CanBeUpdatedBy(userID uuid.UUID) bool {
	return t.CreatorID == userID || t.IsAssignee(userID)
}

// IsOverdue reports whether the task's due date has passed without the task
// being completed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusCompleted && t.DueDate.Before(now)
}
