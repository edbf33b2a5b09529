package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// PostgresActivityStore implements the store.ActivityStore interface
// using a PostgreSQL database as the storage backend. The table is
// append-only; there are no update or delete statements.
type PostgresActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresActivityStore creates a new PostgreSQL implementation of the
// ActivityStore interface. If logger is nil, a default logger will be used.
func NewPostgresActivityStore(db store.DBTX, logger *slog.Logger) *PostgresActivityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

// Ensure PostgresActivityStore implements store.ActivityStore interface
var _ store.ActivityStore = (*PostgresActivityStore)(nil)

// Append implements store.ActivityStore.Append.
func (s *PostgresActivityStore) Append(
	ctx context.Context,
	actorID, taskID uuid.UUID,
	action domain.ActivityAction,
) (*domain.ActivityEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := domain.NewActivityEvent(actorID, taskID, action)
	if err != nil {
		log.Warn("activity event validation failed",
			slog.String("error", err.Error()),
			slog.String("actor_id", actorID.String()),
			slog.String("task_id", taskID.String()))
		return nil, err
	}

	query := `
		INSERT INTO activity_events (id, actor_id, task_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.ActorID,
		event.TaskID,
		event.Action,
		event.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during activity append",
				slog.String("error", err.Error()),
				slog.String("actor_id", actorID.String()),
				slog.String("task_id", taskID.String()))
			return nil, fmt.Errorf("%w: actor %s or task %s not found",
				store.ErrInvalidEntity, actorID, taskID)
		}
		log.Error("failed to append activity event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return nil, MapError(err)
	}

	log.Debug("activity event appended",
		slog.String("event_id", event.ID.String()),
		slog.String("action", string(event.Action)))
	return event, nil
}

// ListRecent implements store.ActivityStore.ListRecent, newest first.
func (s *PostgresActivityStore) ListRecent(
	ctx context.Context,
	limit int,
) ([]domain.ActivityEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, actor_id, task_id, action, created_at
		FROM activity_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error("failed to list recent activity",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	events := []domain.ActivityEvent{}
	for rows.Next() {
		var event domain.ActivityEvent
		var action string
		err := rows.Scan(
			&event.ID,
			&event.ActorID,
			&event.TaskID,
			&action,
			&event.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan activity row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		event.Action = domain.ActivityAction(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning activity rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return events, nil
}

// WithTx implements store.ActivityStore.WithTx.
func (s *PostgresActivityStore) WithTx(tx *sql.Tx) store.ActivityStore {
	return &PostgresActivityStore{
		db:     tx,
		logger: s.logger,
	}
}
