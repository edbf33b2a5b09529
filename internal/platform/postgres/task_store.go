package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend. The assignee set lives
// in the task_assignees join table and is loaded with every task.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = "id, title, description, creator_id, status, priority, due_date, project_link, created_at, updated_at"

// priorityRankSQL mirrors domain.TaskPriority.Rank for ordering in SQL.
const priorityRankSQL = `
	CASE priority
		WHEN 'Urgent' THEN 1
		WHEN 'High' THEN 2
		WHEN 'Medium' THEN 3
		ELSE 4
	END`

// Create implements store.TaskStore.Create.
// It saves the task and its assignee rows. Returns store.ErrInvalidEntity if
// the creator or an assignee does not exist (foreign key violation).
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, title, description, creator_id, status, priority, due_date, project_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.CreatorID,
		task.Status,
		task.Priority,
		task.DueDate,
		task.ProjectLink,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during task creation",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
			return fmt.Errorf("%w: creator with ID %s not found",
				store.ErrInvalidEntity, task.CreatorID)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := s.insertAssignees(ctx, task.ID, task.AssigneeIDs); err != nil {
		return err
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("creator_id", task.CreatorID.String()),
		slog.Int("assignee_count", len(task.AssigneeIDs)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	assignees, err := s.loadAssignees(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	task.AssigneeIDs = assignees[id]

	return task, nil
}

// List implements store.TaskStore.List.
// Completed tasks sort last, then by priority rank (urgent first), then
// newest first.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	filter store.TaskListFilter,
) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf("SELECT %s FROM tasks", taskColumns)
	var args []any

	// Exact-match filters only.
	var conditions []string
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += fmt.Sprintf(
		" ORDER BY (status = 'Completed'), %s, created_at DESC",
		priorityRankSQL,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []domain.Task{}
	var ids []uuid.UUID
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, *task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning task rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	assignees, err := s.loadAssignees(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].AssigneeIDs = assignees[tasks[i].ID]
	}

	log.Debug("listed tasks", slog.Int("count", len(tasks)))
	return tasks, nil
}

// Update implements store.TaskStore.Update.
// Only the mutable fields are written; the creator and assignee set are
// fixed at creation. Returns store.ErrTaskNotFound if the task does not
// exist.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
			due_date = $5, project_link = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.ProjectLink,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Debug("task not found for update",
			slog.String("task_id", task.ID.String()))
		return err
	}

	log.Info("task updated successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// DashboardCounts implements store.TaskStore.DashboardCounts.
func (s *PostgresTaskStore) DashboardCounts(
	ctx context.Context,
	now time.Time,
) (*store.DashboardCounts, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	counts := &store.DashboardCounts{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}

	totalsQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Completed'),
			COUNT(*) FILTER (WHERE status <> 'Completed' AND due_date < $1)
		FROM tasks
	`
	err := s.db.QueryRowContext(ctx, totalsQuery, now).Scan(
		&counts.Total,
		&counts.Completed,
		&counts.Overdue,
	)
	if err != nil {
		log.Error("failed to aggregate task totals",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if err := s.countGroups(ctx, "status", func(key string, n int) {
		counts.ByStatus[domain.TaskStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.countGroups(ctx, "priority", func(key string, n int) {
		counts.ByPriority[domain.TaskPriority(key)] = n
	}); err != nil {
		return nil, err
	}

	return counts, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// insertAssignees writes the assignee join rows for a task.
func (s *PostgresTaskStore) insertAssignees(
	ctx context.Context,
	taskID uuid.UUID,
	assigneeIDs []uuid.UUID,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`
	for _, userID := range assigneeIDs {
		if _, err := s.db.ExecContext(ctx, query, taskID, userID); err != nil {
			if IsForeignKeyViolation(err) {
				log.Warn("foreign key violation during assignee insert",
					slog.String("error", err.Error()),
					slog.String("task_id", taskID.String()),
					slog.String("user_id", userID.String()))
				return fmt.Errorf("%w: assignee with ID %s not found",
					store.ErrInvalidEntity, userID)
			}
			log.Error("failed to insert task assignee",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()),
				slog.String("user_id", userID.String()))
			return MapError(err)
		}
	}
	return nil
}

// loadAssignees fetches the assignee IDs for the given tasks in one query.
func (s *PostgresTaskStore) loadAssignees(
	ctx context.Context,
	taskIDs []uuid.UUID,
) (map[uuid.UUID][]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result := make(map[uuid.UUID][]uuid.UUID, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(
		"SELECT task_id, user_id FROM task_assignees WHERE task_id IN (%s) ORDER BY user_id",
		placeholders(1, len(taskIDs)),
	)
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query task assignees",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var taskID, userID uuid.UUID
		if err := rows.Scan(&taskID, &userID); err != nil {
			log.Error("failed to scan assignee row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		result[taskID] = append(result[taskID], userID)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning assignee rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return result, nil
}

// countGroups runs a GROUP BY count over the given tasks column.
func (s *PostgresTaskStore) countGroups(
	ctx context.Context,
	column string,
	record func(key string, n int),
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// column is one of the fixed names "status" / "priority", never user input.
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM tasks GROUP BY %s", column, column)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to aggregate task counts",
			slog.String("error", err.Error()),
			slog.String("column", column))
		return MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			log.Error("failed to scan count row",
				slog.String("error", err.Error()))
			return MapError(err)
		}
		record(key, n)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning count rows",
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status, priority string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.CreatorID,
		&status,
		&priority,
		&task.DueDate,
		&task.ProjectLink,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	return &task, nil
}
