// Package notify fans a committed task mutation out into its side effects:
// an activity store append, a live broadcast, and a notification email.
// The three effects are independent; a failure in one is logged and never
// blocks the others, and none of them is ever surfaced to the end user as a
// request failure.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/broadcast"
	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/events"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/store"
	"github.com/cmorrow/taskhub-api/internal/task"
)

// Email template keys understood by the email collaborator.
const (
	TemplateTaskAssigned = "task_assigned"
	TemplateTaskUpdated  = "task_updated"
)

// Dispatcher performs the side effects of a completed task mutation.
// It must be called only after the authoritative write has committed:
// nothing here can roll that write back.
type Dispatcher struct {
	activities  store.ActivityStore
	users       store.UserStore
	broadcaster broadcast.Broadcaster
	emitter     events.EventEmitter
	logger      *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
// If log is nil, the default logger is used.
func NewDispatcher(
	activities store.ActivityStore,
	users store.UserStore,
	broadcaster broadcast.Broadcaster,
	emitter events.EventEmitter,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		activities:  activities,
		users:       users,
		broadcaster: broadcaster,
		emitter:     emitter,
		logger:      log.With(slog.String("component", "notification_dispatcher")),
	}
}

// TaskCreated records that actor created the task and emails the new
// assignees.
func (d *Dispatcher) TaskCreated(ctx context.Context, actor *domain.User, t *domain.Task) {
	d.record(ctx, actor, t, domain.ActivityActionCreated)

	d.emitEmail(ctx, task.EmailPayload{
		Recipients:  d.recipientEmails(ctx, t.AssigneeIDs),
		Subject:     "New Task Assigned",
		TemplateKey: TemplateTaskAssigned,
		Data: map[string]string{
			"task_id":    t.ID.String(),
			"task_title": t.Title,
			"due_date":   t.DueDate.Format("2006-01-02"),
		},
	})
}

// TaskUpdated records that actor changed the task's status and emails the
// assignees plus the creator with the old and new status. Every update
// records exactly one event with the updated action, a transition landing on
// Completed included.
func (d *Dispatcher) TaskUpdated(
	ctx context.Context,
	actor *domain.User,
	t *domain.Task,
	priorStatus domain.TaskStatus,
) {
	d.record(ctx, actor, t, domain.ActivityActionUpdated)

	recipientIDs := make([]uuid.UUID, 0, len(t.AssigneeIDs)+1)
	recipientIDs = append(recipientIDs, t.AssigneeIDs...)
	recipientIDs = append(recipientIDs, t.CreatorID)

	d.emitEmail(ctx, task.EmailPayload{
		Recipients:  d.recipientEmails(ctx, recipientIDs),
		Subject:     "Task Updated: " + t.Title,
		TemplateKey: TemplateTaskUpdated,
		Data: map[string]string{
			"task_id":    t.ID.String(),
			"task_title": t.Title,
			"old_status": string(priorStatus),
			"new_status": string(t.Status),
			"updated_by": actor.Name,
		},
	})
}

// TaskCommented records that actor commented on the task. The original
// system sends no email for comments; neither does this one.
func (d *Dispatcher) TaskCommented(ctx context.Context, actor *domain.User, t *domain.Task) {
	d.record(ctx, actor, t, domain.ActivityActionCommented)
}

// record appends one activity event and publishes the matching feed line.
// Both effects are attempted regardless of the other's outcome.
func (d *Dispatcher) record(
	ctx context.Context,
	actor *domain.User,
	t *domain.Task,
	action domain.ActivityAction,
) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if _, err := d.activities.Append(ctx, actor.ID, t.ID, action); err != nil {
		log.Error("failed to append activity event",
			slog.String("error", err.Error()),
			slog.String("actor_id", actor.ID.String()),
			slog.String("task_id", t.ID.String()),
			slog.String("action", string(action)))
	}

	d.broadcaster.Publish(broadcast.TopicRecentActivity, broadcast.Message{
		Message: domain.FeedLine(actor.Name, action, t.Title),
	})
}

// recipientEmails resolves user IDs to email addresses, deduplicating along
// the way. Lookup failures degrade to an empty list; the email side effect
// then becomes a silent no-op.
func (d *Dispatcher) recipientEmails(ctx context.Context, ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, d.logger)

	users, err := d.users.GetByIDs(ctx, ids)
	if err != nil {
		log.Error("failed to resolve email recipients",
			slog.String("error", err.Error()),
			slog.Int("id_count", len(ids)))
		return nil
	}

	seen := make(map[string]bool, len(users))
	emails := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email == "" || seen[u.Email] {
			continue
		}
		seen[u.Email] = true
		emails = append(emails, u.Email)
	}
	return emails
}

// emitEmail hands the email request to the event pipeline. An empty
// recipient list is skipped silently; emit failures are logged and dropped.
func (d *Dispatcher) emitEmail(ctx context.Context, payload task.EmailPayload) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if len(payload.Recipients) == 0 {
		log.Debug("skipping email with no recipients",
			slog.String("template", payload.TemplateKey))
		return
	}

	event, err := events.NewEvent(events.TypeEmailDelivery, payload)
	if err != nil {
		log.Error("failed to build email delivery event",
			slog.String("error", err.Error()),
			slog.String("template", payload.TemplateKey))
		return
	}

	if err := d.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit email delivery event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
	}
}
