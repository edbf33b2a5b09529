package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
)

// CommentStore defines the interface for comment data persistence.
// Comments are immutable: there are no update or delete operations.
type CommentStore interface {
	// Create saves a new comment to the store.
	// Returns ErrInvalidEntity if the task or author does not exist.
	// Returns validation errors from the domain Comment if data is invalid.
	Create(ctx context.Context, comment *domain.Comment) error

	// ListByTask retrieves all comments on the given task, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]domain.Comment, error)

	// WithTx returns a new CommentStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) CommentStore
}
