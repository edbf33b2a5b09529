package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmorrow/taskhub-api/internal/events"
)

// EmailEventHandler implements the events.EventHandler interface to turn
// email delivery events into queued background tasks. The notification
// dispatcher emits events without knowing about the queue; this handler is
// the bridge.
type EmailEventHandler struct {
	queue  TaskQueueWriter
	sender EmailSender
	logger *slog.Logger
}

// NewEmailEventHandler creates a new event handler that builds email delivery
// tasks and enqueues them to the provided queue.
func NewEmailEventHandler(
	queue TaskQueueWriter,
	sender EmailSender,
	logger *slog.Logger,
) *EmailEventHandler {
	return &EmailEventHandler{
		queue:  queue,
		sender: sender,
		logger: logger.With("component", "email_event_handler"),
	}
}

// Ensure EmailEventHandler implements events.EventHandler
var _ events.EventHandler = (*EmailEventHandler)(nil)

// HandleEvent processes email delivery events by creating an
// EmailDeliveryTask and enqueueing it. Events of other types are ignored.
func (h *EmailEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeEmailDelivery {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload EmailPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	// No recipients means nothing to do; not an error.
	if len(payload.Recipients) == 0 {
		h.logger.Debug("skipping email event with no recipients", "event_id", event.ID)
		return nil
	}

	task, err := NewEmailDeliveryTask(h.sender, payload)
	if err != nil {
		h.logger.Error("failed to create email delivery task",
			"error", err,
			"event_id", event.ID)
		return fmt.Errorf("failed to create email delivery task: %w", err)
	}

	if err := h.queue.Enqueue(task); err != nil {
		h.logger.Error("failed to enqueue email delivery task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue email delivery task: %w", err)
	}

	h.logger.Debug("email delivery task enqueued",
		"task_id", task.ID(),
		"event_id", event.ID,
		"recipient_count", len(payload.Recipients))
	return nil
}
