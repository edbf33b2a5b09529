package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
)

// TaskListFilter narrows the result of TaskStore.List. Zero values mean
// "no filtering" for that field.
type TaskListFilter struct {
	Status   domain.TaskStatus
	Priority domain.TaskPriority
}

// DashboardCounts aggregates task counts for the dashboard view.
type DashboardCounts struct {
	Total      int
	Completed  int
	Overdue    int
	ByStatus   map[domain.TaskStatus]int
	ByPriority map[domain.TaskPriority]int
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task and its assignee set to the store.
	// Returns ErrInvalidEntity if the creator or an assignee does not exist.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task, including its assignee IDs, by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter, sorted with completed tasks
	// last, then by priority rank (urgent first), then newest first.
	List(ctx context.Context, filter TaskListFilter) ([]domain.Task, error)

	// Update persists changes to an existing task's mutable fields
	// (status, project link, updated-at). The creator is immutable and is
	// never written back. Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// DashboardCounts aggregates task counts by status and priority, plus
	// totals and the number of tasks overdue relative to now.
	DashboardCounts(ctx context.Context, now time.Time) (*DashboardCounts, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction should be created and managed by the
	// caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
