package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// fakeTaskStore holds tasks in memory.
type fakeTaskStore struct {
	tasks     map[uuid.UUID]*domain.Task
	listed    []domain.Task
	counts    *store.DashboardCounts
	createErr error
	updateErr error
	updated   int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (f *fakeTaskStore) Create(_ context.Context, task *domain.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) List(_ context.Context, _ store.TaskListFilter) ([]domain.Task, error) {
	return f.listed, nil
}

func (f *fakeTaskStore) Update(_ context.Context, task *domain.Task) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	copied := *task
	f.tasks[task.ID] = &copied
	f.updated++
	return nil
}

func (f *fakeTaskStore) DashboardCounts(_ context.Context, _ time.Time) (*store.DashboardCounts, error) {
	return f.counts, nil
}

func (f *fakeTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return f }

// fakeUserStore resolves users from a fixed map.
type fakeUserStore struct {
	users map[uuid.UUID]domain.User
}

func (f *fakeUserStore) Create(_ context.Context, _ *domain.User) error { return nil }

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, store.ErrUserNotFound
}

func (f *fakeUserStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	resolved := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}

func (f *fakeUserStore) WithTx(_ *sql.Tx) store.UserStore { return f }

// fakeCommentStore holds comments in memory.
type fakeCommentStore struct {
	comments  []domain.Comment
	createErr error
}

func (f *fakeCommentStore) Create(_ context.Context, comment *domain.Comment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.comments = append(f.comments, *comment)
	return nil
}

func (f *fakeCommentStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) WithTx(_ *sql.Tx) store.CommentStore { return f }

// fakeActivityStore serves a fixed recent-events slice.
type fakeActivityStore struct {
	recent []domain.ActivityEvent
}

func (f *fakeActivityStore) Append(
	_ context.Context,
	actorID, taskID uuid.UUID,
	action domain.ActivityAction,
) (*domain.ActivityEvent, error) {
	return domain.NewActivityEvent(actorID, taskID, action)
}

func (f *fakeActivityStore) ListRecent(_ context.Context, limit int) ([]domain.ActivityEvent, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeActivityStore) WithTx(_ *sql.Tx) store.ActivityStore { return f }

// recordingNotifier captures dispatched notifications.
type recordingNotifier struct {
	created   []uuid.UUID
	updated   []domain.TaskStatus // prior statuses, in call order
	commented []uuid.UUID
}

func (r *recordingNotifier) TaskCreated(_ context.Context, _ *domain.User, t *domain.Task) {
	r.created = append(r.created, t.ID)
}

func (r *recordingNotifier) TaskUpdated(
	_ context.Context,
	_ *domain.User,
	_ *domain.Task,
	priorStatus domain.TaskStatus,
) {
	r.updated = append(r.updated, priorStatus)
}

func (r *recordingNotifier) TaskCommented(_ context.Context, _ *domain.User, t *domain.Task) {
	r.commented = append(r.commented, t.ID)
}

type serviceFixture struct {
	svc        *taskServiceImpl
	tasks      *fakeTaskStore
	users      *fakeUserStore
	comments   *fakeCommentStore
	activities *fakeActivityStore
	notifier   *recordingNotifier

	manager      *domain.User
	developer    *domain.User
	otherDev     *domain.User
	existingTask *domain.Task
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	manager, err := domain.NewUser("pm@example.com", "alice", "password123", domain.RoleProjectManager)
	require.NoError(t, err)
	developer, err := domain.NewUser("dev@example.com", "bob", "password123", domain.RoleDeveloper)
	require.NoError(t, err)
	otherDev, err := domain.NewUser("dev2@example.com", "carol", "password123", domain.RoleDeveloper)
	require.NoError(t, err)

	tasks := newFakeTaskStore()
	users := &fakeUserStore{users: map[uuid.UUID]domain.User{
		manager.ID:   *manager,
		developer.ID: *developer,
		otherDev.ID:  *otherDev,
	}}
	comments := &fakeCommentStore{}
	activities := &fakeActivityStore{}
	notifier := &recordingNotifier{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewTaskService(tasks, users, comments, activities, nil, notifier, logger).(*taskServiceImpl)
	svc.runTx = func(ctx context.Context, _ *sql.DB, fn store.TxFn) error {
		return fn(ctx, nil)
	}

	existing, err := domain.NewTask(
		manager.ID,
		"Fix login bug",
		"Session cookie expires too early",
		[]uuid.UUID{developer.ID},
		domain.TaskPriorityHigh,
		time.Now().UTC().AddDate(0, 0, 7),
		"",
	)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(context.Background(), existing))

	return &serviceFixture{
		svc:          svc,
		tasks:        tasks,
		users:        users,
		comments:     comments,
		activities:   activities,
		notifier:     notifier,
		manager:      manager,
		developer:    developer,
		otherDev:     otherDev,
		existingTask: existing,
	}
}

func validCreateInput(fx *serviceFixture) CreateTaskInput {
	return CreateTaskInput{
		Title:       "Ship dark mode",
		Description: "Theme toggle in settings",
		AssigneeIDs: []uuid.UUID{fx.developer.ID},
		Priority:    domain.TaskPriorityUrgent,
		DueDate:     time.Now().UTC().AddDate(0, 0, 14),
	}
}

func TestCreateTask(t *testing.T) {
	fx := newServiceFixture(t)

	created, err := fx.svc.CreateTask(context.Background(), fx.manager, validCreateInput(fx))
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusNotStarted, created.Status)
	assert.Equal(t, fx.manager.ID, created.CreatorID)
	assert.Equal(t, domain.TaskPriorityUrgent, created.Priority)

	stored, err := fx.tasks.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, stored.Title)

	require.Len(t, fx.notifier.created, 1)
	assert.Equal(t, created.ID, fx.notifier.created[0])
}

func TestCreateTaskDefaultsPriority(t *testing.T) {
	fx := newServiceFixture(t)
	input := validCreateInput(fx)
	input.Priority = ""

	created, err := fx.svc.CreateTask(context.Background(), fx.manager, input)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPriorityMedium, created.Priority)
}

func TestCreateTaskForbiddenForDeveloper(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.CreateTask(context.Background(), fx.developer, validCreateInput(fx))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, fx.notifier.created)
}

func TestCreateTaskUnknownAssignee(t *testing.T) {
	fx := newServiceFixture(t)
	input := validCreateInput(fx)
	input.AssigneeIDs = []uuid.UUID{uuid.New()}

	_, err := fx.svc.CreateTask(context.Background(), fx.manager, input)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateTaskManagerAssigneeRejected(t *testing.T) {
	fx := newServiceFixture(t)
	input := validCreateInput(fx)
	input.AssigneeIDs = []uuid.UUID{fx.manager.ID}

	_, err := fx.svc.CreateTask(context.Background(), fx.manager, input)
	assert.ErrorIs(t, err, ErrAssigneeNotDeveloper)
}

func TestCreateTaskInvalidInput(t *testing.T) {
	fx := newServiceFixture(t)
	input := validCreateInput(fx)
	input.Title = ""

	_, err := fx.svc.CreateTask(context.Background(), fx.manager, input)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, fx.notifier.created)
}

func TestCreateTaskStoreFailure(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tasks.createErr = errors.New("database unavailable")

	_, err := fx.svc.CreateTask(context.Background(), fx.manager, validCreateInput(fx))
	require.Error(t, err)

	var svcErr *TaskServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create_task", svcErr.Operation)
	assert.Empty(t, fx.notifier.created, "no notification when the write failed")
}

func TestProposeTransitionByAssigneeDeveloper(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.ProposeTransition(
		context.Background(),
		fx.developer,
		fx.existingTask.ID,
		domain.TaskStatusInProgress,
		"https://github.com/example/fix",
	)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusNotStarted, result.PriorStatus)
	assert.Equal(t, domain.TaskStatusInProgress, result.Task.Status)
	assert.Equal(t, "https://github.com/example/fix", result.Task.ProjectLink)

	stored, err := fx.tasks.GetByID(context.Background(), fx.existingTask.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, stored.Status)

	require.Len(t, fx.notifier.updated, 1)
	assert.Equal(t, domain.TaskStatusNotStarted, fx.notifier.updated[0])
}

func TestProposeTransitionDeveloperStatusGate(t *testing.T) {
	fx := newServiceFixture(t)

	for _, status := range domain.AllTaskStatuses() {
		allowed := status == domain.TaskStatusInProgress || status == domain.TaskStatusSubmitted

		_, err := fx.svc.ProposeTransition(
			context.Background(), fx.developer, fx.existingTask.ID, status, "")
		if allowed {
			assert.NoError(t, err, "developer should be able to set %q", status)
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition,
				"developer should not be able to set %q", status)
		}
	}
}

func TestProposeTransitionForbiddenForOutsider(t *testing.T) {
	fx := newServiceFixture(t)

	for _, status := range domain.AllTaskStatuses() {
		_, err := fx.svc.ProposeTransition(
			context.Background(), fx.otherDev, fx.existingTask.ID, status, "")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}
	assert.Zero(t, fx.tasks.updated, "no writes for forbidden requests")
	assert.Empty(t, fx.notifier.updated)
}

func TestProposeTransitionManagerReopensCompleted(t *testing.T) {
	fx := newServiceFixture(t)
	fx.existingTask.Status = domain.TaskStatusCompleted
	require.NoError(t, fx.tasks.Update(context.Background(), fx.existingTask))

	result, err := fx.svc.ProposeTransition(
		context.Background(), fx.manager, fx.existingTask.ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, result.PriorStatus)
	assert.Equal(t, domain.TaskStatusInProgress, result.Task.Status)
}

func TestProposeTransitionManagerLinkIgnored(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.ProposeTransition(
		context.Background(), fx.manager, fx.existingTask.ID,
		domain.TaskStatusReview, "https://example.com/link")
	require.NoError(t, err)
	assert.Empty(t, result.Task.ProjectLink, "only developers set the project link")
}

func TestProposeTransitionTaskNotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.ProposeTransition(
		context.Background(), fx.manager, uuid.New(), domain.TaskStatusReview, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestProposeTransitionUpdateFailure(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tasks.updateErr = errors.New("database unavailable")

	_, err := fx.svc.ProposeTransition(
		context.Background(), fx.manager, fx.existingTask.ID, domain.TaskStatusReview, "")
	require.Error(t, err)
	assert.Empty(t, fx.notifier.updated, "no notification when the write failed")
}

func TestAddComment(t *testing.T) {
	fx := newServiceFixture(t)

	comment, err := fx.svc.AddComment(
		context.Background(), fx.developer, fx.existingTask.ID, "Looks good to me")
	require.NoError(t, err)

	assert.Equal(t, fx.existingTask.ID, comment.TaskID)
	assert.Equal(t, fx.developer.ID, comment.AuthorID)
	require.Len(t, fx.comments.comments, 1)

	require.Len(t, fx.notifier.commented, 1)
	assert.Equal(t, fx.existingTask.ID, fx.notifier.commented[0])
}

func TestAddCommentEmptyBody(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.AddComment(context.Background(), fx.developer, fx.existingTask.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, fx.notifier.commented)
}

func TestAddCommentTaskNotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.AddComment(context.Background(), fx.developer, uuid.New(), "hello")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTask(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.AddComment(context.Background(), fx.developer, fx.existingTask.ID, "first")
	require.NoError(t, err)
	_, err = fx.svc.AddComment(context.Background(), fx.manager, fx.existingTask.ID, "second")
	require.NoError(t, err)

	detail, err := fx.svc.GetTask(context.Background(), fx.existingTask.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.existingTask.ID, detail.Task.ID)
	assert.Len(t, detail.Comments, 2)
}

func TestGetTaskNotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDashboard(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tasks.counts = &store.DashboardCounts{
		Total:     3,
		Completed: 1,
		Overdue:   1,
		ByStatus:  map[domain.TaskStatus]int{domain.TaskStatusCompleted: 1},
	}

	created, err := domain.NewActivityEvent(
		fx.manager.ID, fx.existingTask.ID, domain.ActivityActionCreated)
	require.NoError(t, err)
	commented, err := domain.NewActivityEvent(
		fx.developer.ID, fx.existingTask.ID, domain.ActivityActionCommented)
	require.NoError(t, err)
	fx.activities.recent = []domain.ActivityEvent{*commented, *created}

	summary, err := fx.svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Counts.Total)
	require.Len(t, summary.RecentActivity, 2)
	assert.Equal(t, "bob commented on a task on Fix login bug", summary.RecentActivity[0])
	assert.Equal(t, "alice created a task on Fix login bug", summary.RecentActivity[1])
}

func TestDashboardSkipsUnresolvableEvents(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tasks.counts = &store.DashboardCounts{}

	ghost, err := domain.NewActivityEvent(
		uuid.New(), fx.existingTask.ID, domain.ActivityActionUpdated)
	require.NoError(t, err)
	orphan, err := domain.NewActivityEvent(
		fx.manager.ID, uuid.New(), domain.ActivityActionUpdated)
	require.NoError(t, err)
	resolvable, err := domain.NewActivityEvent(
		fx.manager.ID, fx.existingTask.ID, domain.ActivityActionUpdated)
	require.NoError(t, err)
	fx.activities.recent = []domain.ActivityEvent{*ghost, *orphan, *resolvable}

	summary, err := fx.svc.Dashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.RecentActivity, 1)
	assert.Equal(t, "alice updated a task on Fix login bug", summary.RecentActivity[0])
}
