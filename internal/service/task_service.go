package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// Notifier performs the side effects of a committed task mutation: activity
// log append, live broadcast, and notification email. Implementations must
// never fail the caller; errors are handled internally.
type Notifier interface {
	TaskCreated(ctx context.Context, actor *domain.User, t *domain.Task)
	TaskUpdated(ctx context.Context, actor *domain.User, t *domain.Task, priorStatus domain.TaskStatus)
	TaskCommented(ctx context.Context, actor *domain.User, t *domain.Task)
}

// CreateTaskInput carries the caller-supplied fields for a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeIDs []uuid.UUID
	Priority    domain.TaskPriority
	DueDate     time.Time
	ProjectLink string
}

// TransitionResult reports the outcome of a successful status transition.
type TransitionResult struct {
	Task        *domain.Task
	PriorStatus domain.TaskStatus
}

// TaskDetail bundles a task with its comments for the detail view.
type TaskDetail struct {
	Task     *domain.Task
	Comments []domain.Comment
}

// DashboardSummary aggregates task counts with the most recent activity
// feed lines.
type DashboardSummary struct {
	Counts         *store.DashboardCounts
	RecentActivity []string
}

// How many activity lines the dashboard shows.
const dashboardActivityLimit = 10

// TaskService provides task-related operations.
type TaskService interface {
	// CreateTask creates a new task on behalf of actor. Only project
	// managers may create tasks, and every assignee must hold the
	// Developer role.
	CreateTask(ctx context.Context, actor *domain.User, input CreateTaskInput) (*domain.Task, error)

	// ProposeTransition moves the task to the proposed status on behalf of
	// actor. The actor must be the task's creator or a current assignee,
	// and the proposed status must be allowed for the actor's role.
	// Developers may additionally set the task's project link. Returns the
	// updated task together with the status it had before the transition.
	ProposeTransition(
		ctx context.Context,
		actor *domain.User,
		taskID uuid.UUID,
		status domain.TaskStatus,
		projectLink string,
	) (*TransitionResult, error)

	// AddComment records a comment by actor on the task.
	AddComment(ctx context.Context, actor *domain.User, taskID uuid.UUID, body string) (*domain.Comment, error)

	// GetTask retrieves a task together with its comments.
	GetTask(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error)

	// ListTasks retrieves tasks matching the filter, completed tasks last,
	// then by priority rank, then newest first.
	ListTasks(ctx context.Context, filter store.TaskListFilter) ([]domain.Task, error)

	// Dashboard aggregates task counts and the most recent activity lines.
	Dashboard(ctx context.Context) (*DashboardSummary, error)
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	tasks      store.TaskStore
	users      store.UserStore
	comments   store.CommentStore
	activities store.ActivityStore
	db         *sql.DB
	notifier   Notifier
	logger     *slog.Logger
	timeFunc   func() time.Time // Injectable for testing
	runTx      func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	tasks store.TaskStore,
	users store.UserStore,
	comments store.CommentStore,
	activities store.ActivityStore,
	db *sql.DB,
	notifier Notifier,
	logger *slog.Logger,
) TaskService {
	return &taskServiceImpl{
		tasks:      tasks,
		users:      users,
		comments:   comments,
		activities: activities,
		db:         db,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "task_service")),
		timeFunc:   time.Now,
		runTx:      store.RunInTransaction,
	}
}

// CreateTask creates a new task on behalf of actor.
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	actor *domain.User,
	input CreateTaskInput,
) (*domain.Task, error) {
	if actor.IsDeveloper() {
		s.logger.Debug("developer attempted to create a task",
			"actor_id", actor.ID)
		return nil, domain.ErrForbidden
	}

	if err := s.checkAssignees(ctx, input.AssigneeIDs); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(
		actor.ID,
		input.Title,
		input.Description,
		input.AssigneeIDs,
		input.Priority,
		input.DueDate,
		input.ProjectLink,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to create task",
			"error", err,
			"actor_id", actor.ID)
		return nil, newTaskServiceError("create_task", "failed to save task", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"assignee_count", len(task.AssigneeIDs))

	s.notifier.TaskCreated(ctx, actor, task)

	return task, nil
}

// ProposeTransition moves the task to the proposed status on behalf of actor.
func (s *taskServiceImpl) ProposeTransition(
	ctx context.Context,
	actor *domain.User,
	taskID uuid.UUID,
	status domain.TaskStatus,
	projectLink string,
) (*TransitionResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, newTaskServiceError("propose_transition", "failed to load task", err)
	}

	if !task.CanBeUpdatedBy(actor.ID) {
		s.logger.Debug("transition rejected: actor is not creator or assignee",
			"task_id", taskID,
			"actor_id", actor.ID)
		return nil, domain.ErrForbidden
	}

	if !domain.StatusAllowedForRole(status, actor.Role) {
		s.logger.Debug("transition rejected: status not allowed for role",
			"task_id", taskID,
			"actor_id", actor.ID,
			"role", string(actor.Role),
			"status", string(status))
		return nil, domain.ErrInvalidTransition
	}

	priorStatus := task.Status
	task.Status = status
	if actor.IsDeveloper() && projectLink != "" {
		task.ProjectLink = projectLink
	}
	task.UpdatedAt = s.timeFunc().UTC()

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Update(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to persist status transition",
			"error", err,
			"task_id", taskID,
			"actor_id", actor.ID)
		return nil, newTaskServiceError("propose_transition", "failed to update task", err)
	}

	s.logger.Info("task status changed",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"prior_status", string(priorStatus),
		"new_status", string(task.Status))

	s.notifier.TaskUpdated(ctx, actor, task, priorStatus)

	return &TransitionResult{Task: task, PriorStatus: priorStatus}, nil
}

// AddComment records a comment by actor on the task.
func (s *taskServiceImpl) AddComment(
	ctx context.Context,
	actor *domain.User,
	taskID uuid.UUID,
	body string,
) (*domain.Comment, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, newTaskServiceError("add_comment", "failed to load task", err)
	}

	comment, err := domain.NewComment(task.ID, actor.ID, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.comments.WithTx(tx).Create(ctx, comment)
	})
	if err != nil {
		s.logger.Error("failed to create comment",
			"error", err,
			"task_id", taskID,
			"actor_id", actor.ID)
		return nil, newTaskServiceError("add_comment", "failed to save comment", err)
	}

	s.notifier.TaskCommented(ctx, actor, task)

	return comment, nil
}

// GetTask retrieves a task together with its comments.
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, newTaskServiceError("get_task", "failed to load task", err)
	}

	comments, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, newTaskServiceError("get_task", "failed to load comments", err)
	}

	return &TaskDetail{Task: task, Comments: comments}, nil
}

// ListTasks retrieves tasks matching the filter.
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	filter store.TaskListFilter,
) ([]domain.Task, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, newTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// Dashboard aggregates task counts and the most recent activity lines.
func (s *taskServiceImpl) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	counts, err := s.tasks.DashboardCounts(ctx, s.timeFunc().UTC())
	if err != nil {
		return nil, newTaskServiceError("dashboard", "failed to aggregate counts", err)
	}

	events, err := s.activities.ListRecent(ctx, dashboardActivityLimit)
	if err != nil {
		return nil, newTaskServiceError("dashboard", "failed to load recent activity", err)
	}

	return &DashboardSummary{
		Counts:         counts,
		RecentActivity: s.renderFeedLines(ctx, events),
	}, nil
}

// checkAssignees verifies every assignee exists and holds the Developer role.
func (s *taskServiceImpl) checkAssignees(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return newTaskServiceError("create_task", "failed to resolve assignees", err)
	}

	byID := make(map[uuid.UUID]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for _, id := range ids {
		user, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: assignee %s", ErrUserNotFound, id)
		}
		if !user.IsDeveloper() {
			return fmt.Errorf("%w: %s", ErrAssigneeNotDeveloper, user.Email)
		}
	}

	return nil
}

// renderFeedLines resolves actor names and task titles for the given events
// and renders them as human-readable feed lines, newest first. Events whose
// actor or task can no longer be resolved are skipped.
func (s *taskServiceImpl) renderFeedLines(
	ctx context.Context,
	events []domain.ActivityEvent,
) []string {
	if len(events) == 0 {
		return nil
	}

	actorIDs := make([]uuid.UUID, 0, len(events))
	seen := make(map[uuid.UUID]bool, len(events))
	for _, e := range events {
		if !seen[e.ActorID] {
			seen[e.ActorID] = true
			actorIDs = append(actorIDs, e.ActorID)
		}
	}

	actors := make(map[uuid.UUID]string, len(actorIDs))
	users, err := s.users.GetByIDs(ctx, actorIDs)
	if err != nil {
		s.logger.Error("failed to resolve activity actors",
			"error", err,
			"actor_count", len(actorIDs))
	} else {
		for _, u := range users {
			actors[u.ID] = u.Name
		}
	}

	titles := make(map[uuid.UUID]string, len(events))
	lines := make([]string, 0, len(events))
	for _, e := range events {
		name, ok := actors[e.ActorID]
		if !ok {
			continue
		}

		title, ok := titles[e.TaskID]
		if !ok {
			task, err := s.tasks.GetByID(ctx, e.TaskID)
			if err != nil {
				if !errors.Is(err, store.ErrTaskNotFound) {
					s.logger.Error("failed to resolve activity task",
						"error", err,
						"task_id", e.TaskID)
				}
				continue
			}
			title = task.Title
			titles[e.TaskID] = title
		}

		lines = append(lines, domain.FeedLine(name, e.Action, title))
	}

	return lines
}
