package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
)

// ActivityStore defines the interface for the append-only activity log.
// It is the durable system of record for the activity feed; real-time
// delivery to connected viewers is a separate, best-effort concern.
type ActivityStore interface {
	// Append records a new activity event, timestamped at append time, and
	// returns it. Events are never updated or deleted.
	Append(
		ctx context.Context,
		actorID, taskID uuid.UUID,
		action domain.ActivityAction,
	) (*domain.ActivityEvent, error)

	// ListRecent retrieves up to limit events, newest first. Repeated calls
	// reflect current store state rather than a snapshot.
	ListRecent(ctx context.Context, limit int) ([]domain.ActivityEvent, error)

	// WithTx returns a new ActivityStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ActivityStore
}
