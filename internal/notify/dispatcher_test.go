package notify_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorrow/taskhub-api/internal/broadcast"
	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/events"
	"github.com/cmorrow/taskhub-api/internal/notify"
	"github.com/cmorrow/taskhub-api/internal/store"
	"github.com/cmorrow/taskhub-api/internal/task"
)

// fakeActivityStore records appended events in memory.
type fakeActivityStore struct {
	appended  []domain.ActivityEvent
	appendErr error
}

func (f *fakeActivityStore) Append(
	_ context.Context,
	actorID, taskID uuid.UUID,
	action domain.ActivityAction,
) (*domain.ActivityEvent, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	event, err := domain.NewActivityEvent(actorID, taskID, action)
	if err != nil {
		return nil, err
	}
	f.appended = append(f.appended, *event)
	return event, nil
}

func (f *fakeActivityStore) ListRecent(_ context.Context, _ int) ([]domain.ActivityEvent, error) {
	return f.appended, nil
}

func (f *fakeActivityStore) WithTx(_ *sql.Tx) store.ActivityStore { return f }

// fakeUserStore resolves users from a fixed map.
type fakeUserStore struct {
	users  map[uuid.UUID]domain.User
	getErr error
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
	if f.getErr != nil {
		return nil, f.getErr
	}
	resolved := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}

func (f *fakeUserStore) WithTx(_ *sql.Tx) store.UserStore { return f }

// recordingEmitter captures emitted events without running handlers.
type recordingEmitter struct {
	emitted []*events.Event
	emitErr error
}

func (r *recordingEmitter) EmitEvent(_ context.Context, event *events.Event) error {
	if r.emitErr != nil {
		return r.emitErr
	}
	r.emitted = append(r.emitted, event)
	return nil
}

func (r *recordingEmitter) lastPayload(t *testing.T) task.EmailPayload {
	t.Helper()
	require.NotEmpty(t, r.emitted, "expected at least one emitted event")
	var payload task.EmailPayload
	require.NoError(t, r.emitted[len(r.emitted)-1].UnmarshalPayload(&payload))
	return payload
}

type dispatcherFixture struct {
	dispatcher *notify.Dispatcher
	activities *fakeActivityStore
	emitter    *recordingEmitter
	hub        *broadcast.Hub
	feed       <-chan broadcast.Message

	manager   *domain.User
	developer *domain.User
	task      *domain.Task
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	manager, err := domain.NewUser("pm@example.com", "alice", "password123", domain.RoleProjectManager)
	require.NoError(t, err)
	developer, err := domain.NewUser("dev@example.com", "bob", "password123", domain.RoleDeveloper)
	require.NoError(t, err)

	tsk, err := domain.NewTask(
		manager.ID,
		"Fix login bug",
		"Session cookie expires too early",
		[]uuid.UUID{developer.ID},
		domain.TaskPriorityHigh,
		time.Now().UTC().AddDate(0, 0, 7),
		"",
	)
	require.NoError(t, err)

	activities := &fakeActivityStore{}
	users := &fakeUserStore{users: map[uuid.UUID]domain.User{
		manager.ID:   *manager,
		developer.ID: *developer,
	}}
	emitter := &recordingEmitter{}
	hub := broadcast.NewHub(4, nil)
	feed := hub.Join(broadcast.TopicRecentActivity, "feed-test")

	return &dispatcherFixture{
		dispatcher: notify.NewDispatcher(activities, users, hub, emitter, nil),
		activities: activities,
		emitter:    emitter,
		hub:        hub,
		feed:       feed,
		manager:    manager,
		developer:  developer,
		task:       tsk,
	}
}

func (fx *dispatcherFixture) receiveFeed(t *testing.T) broadcast.Message {
	t.Helper()
	select {
	case msg := <-fx.feed:
		return msg
	default:
		t.Fatal("expected a broadcast message but the feed is empty")
		return broadcast.Message{}
	}
}

func (fx *dispatcherFixture) requireFeedEmpty(t *testing.T) {
	t.Helper()
	select {
	case msg := <-fx.feed:
		t.Fatalf("expected no further broadcast messages, got %q", msg.Message)
	default:
	}
}

func TestDispatcherTaskCreated(t *testing.T) {
	fx := newDispatcherFixture(t)

	fx.dispatcher.TaskCreated(context.Background(), fx.manager, fx.task)

	require.Len(t, fx.activities.appended, 1)
	assert.Equal(t, domain.ActivityActionCreated, fx.activities.appended[0].Action)
	assert.Equal(t, fx.manager.ID, fx.activities.appended[0].ActorID)
	assert.Equal(t, fx.task.ID, fx.activities.appended[0].TaskID)

	msg := fx.receiveFeed(t)
	assert.Equal(t, "alice created a task on Fix login bug", msg.Message)

	payload := fx.emitter.lastPayload(t)
	assert.Equal(t, []string{"dev@example.com"}, payload.Recipients)
	assert.Equal(t, "New Task Assigned", payload.Subject)
	assert.Equal(t, notify.TemplateTaskAssigned, payload.TemplateKey)
	assert.Equal(t, "Fix login bug", payload.Data["task_title"])
}

func TestDispatcherTaskCreatedNoAssignees(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.task.AssigneeIDs = nil

	fx.dispatcher.TaskCreated(context.Background(), fx.manager, fx.task)

	assert.Len(t, fx.activities.appended, 1, "activity is recorded even without assignees")
	fx.receiveFeed(t)
	assert.Empty(t, fx.emitter.emitted, "no email event without recipients")
}

func TestDispatcherTaskUpdated(t *testing.T) {
	fx := newDispatcherFixture(t)
	prior := fx.task.Status
	fx.task.Status = domain.TaskStatusInProgress

	fx.dispatcher.TaskUpdated(context.Background(), fx.developer, fx.task, prior)

	require.Len(t, fx.activities.appended, 1)
	assert.Equal(t, domain.ActivityActionUpdated, fx.activities.appended[0].Action)

	msg := fx.receiveFeed(t)
	assert.Equal(t, "bob updated a task on Fix login bug", msg.Message)

	payload := fx.emitter.lastPayload(t)
	assert.ElementsMatch(t, []string{"dev@example.com", "pm@example.com"}, payload.Recipients)
	assert.Equal(t, "Task Updated: Fix login bug", payload.Subject)
	assert.Equal(t, notify.TemplateTaskUpdated, payload.TemplateKey)
	assert.Equal(t, string(domain.TaskStatusNotStarted), payload.Data["old_status"])
	assert.Equal(t, string(domain.TaskStatusInProgress), payload.Data["new_status"])
	assert.Equal(t, "bob", payload.Data["updated_by"])
}

func TestDispatcherTaskUpdatedToCompleted(t *testing.T) {
	fx := newDispatcherFixture(t)
	prior := domain.TaskStatusNotStarted
	fx.task.Status = domain.TaskStatusCompleted

	fx.dispatcher.TaskUpdated(context.Background(), fx.manager, fx.task, prior)

	// A transition landing on Completed is still a single update: exactly one
	// activity event, one feed line, one email.
	require.Len(t, fx.activities.appended, 1)
	assert.Equal(t, domain.ActivityActionUpdated, fx.activities.appended[0].Action)

	msg := fx.receiveFeed(t)
	assert.Equal(t, "alice updated a task on Fix login bug", msg.Message)
	fx.requireFeedEmpty(t)

	require.Len(t, fx.emitter.emitted, 1)
	payload := fx.emitter.lastPayload(t)
	assert.Equal(t, string(domain.TaskStatusCompleted), payload.Data["new_status"])
}

func TestDispatcherTaskCommented(t *testing.T) {
	fx := newDispatcherFixture(t)

	fx.dispatcher.TaskCommented(context.Background(), fx.developer, fx.task)

	require.Len(t, fx.activities.appended, 1)
	assert.Equal(t, domain.ActivityActionCommented, fx.activities.appended[0].Action)

	msg := fx.receiveFeed(t)
	assert.Equal(t, "bob commented on a task on Fix login bug", msg.Message)

	assert.Empty(t, fx.emitter.emitted, "comments never produce email")
}

func TestDispatcherStoreFailureDoesNotBlockBroadcast(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.activities.appendErr = errors.New("database unavailable")

	fx.dispatcher.TaskCreated(context.Background(), fx.manager, fx.task)

	msg := fx.receiveFeed(t)
	assert.Equal(t, "alice created a task on Fix login bug", msg.Message)
	require.Len(t, fx.emitter.emitted, 1, "email still emitted after store failure")
}

func TestDispatcherRecipientLookupFailureSkipsEmail(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.dispatcher = notify.NewDispatcher(
		fx.activities,
		&fakeUserStore{getErr: errors.New("database unavailable")},
		fx.hub,
		fx.emitter,
		nil,
	)

	fx.dispatcher.TaskCreated(context.Background(), fx.manager, fx.task)

	assert.Len(t, fx.activities.appended, 1)
	fx.receiveFeed(t)
	assert.Empty(t, fx.emitter.emitted, "recipient resolution failure degrades to no email")
}

func TestDispatcherEmitFailureIsSwallowed(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.emitter.emitErr = errors.New("queue closed")

	fx.dispatcher.TaskCreated(context.Background(), fx.manager, fx.task)

	assert.Len(t, fx.activities.appended, 1)
	fx.receiveFeed(t)
}
