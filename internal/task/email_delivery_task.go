package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EmailSender is the outbound email collaborator. Implementations own
// rendering: the task supplies recipients, a subject, a template key and the
// template context, never a rendered body.
type EmailSender interface {
	// Send delivers one email to the given recipients.
	Send(
		ctx context.Context,
		recipients []string,
		subject, templateKey string,
		data map[string]string,
	) error
}

// EmailPayload is the serialized description of one notification email.
type EmailPayload struct {
	Recipients  []string          `json:"recipients"`
	Subject     string            `json:"subject"`
	TemplateKey string            `json:"template_key"`
	Data        map[string]string `json:"data,omitempty"`
}

// EmailDeliveryTask is a background task that delivers a single notification
// email through an EmailSender.
type EmailDeliveryTask struct {
	id      uuid.UUID
	payload EmailPayload
	raw     []byte
	status  TaskStatus
	sender  EmailSender
}

// Ensure EmailDeliveryTask implements the Task interface
var _ Task = (*EmailDeliveryTask)(nil)

// NewEmailDeliveryTask creates a new email delivery task for the given
// payload. Returns an error if the sender is nil or the payload cannot be
// serialized.
func NewEmailDeliveryTask(sender EmailSender, payload EmailPayload) (*EmailDeliveryTask, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender cannot be nil")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}

	return &EmailDeliveryTask{
		id:      uuid.New(),
		payload: payload,
		raw:     raw,
		status:  TaskStatusPending,
		sender:  sender,
	}, nil
}

// ID implements Task.ID
func (t *EmailDeliveryTask) ID() uuid.UUID {
	return t.id
}

// Type implements Task.Type
func (t *EmailDeliveryTask) Type() string {
	return TaskTypeEmailDelivery
}

// Payload implements Task.Payload
func (t *EmailDeliveryTask) Payload() []byte {
	return t.raw
}

// Status implements Task.Status
func (t *EmailDeliveryTask) Status() TaskStatus {
	return t.status
}

// Execute delivers the email. An empty recipient list is a silent no-op,
// not an error.
func (t *EmailDeliveryTask) Execute(ctx context.Context) error {
	if len(t.payload.Recipients) == 0 {
		t.status = TaskStatusCompleted
		return nil
	}

	t.status = TaskStatusProcessing

	err := t.sender.Send(
		ctx,
		t.payload.Recipients,
		t.payload.Subject,
		t.payload.TemplateKey,
		t.payload.Data,
	)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to send email: %w", err)
	}

	t.status = TaskStatusCompleted
	return nil
}
