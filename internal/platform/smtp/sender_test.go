package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorrow/taskhub-api/internal/config"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Host:     "mail.example.com",
		Port:     587,
		Username: "taskhub",
		Password: "secret",
		From:     "noreply@example.com",
	}
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func captureSender(cfg config.EmailConfig, sent *[]sentMail, sendErr error) *Sender {
	s := NewSender(cfg, nil)
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if sendErr != nil {
			return sendErr
		}
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return s
}

func TestSend(t *testing.T) {
	var sent []sentMail
	s := captureSender(testEmailConfig(), &sent, nil)

	err := s.Send(
		context.Background(),
		[]string{"dev@example.com", "pm@example.com"},
		"Task Updated: Fix login bug",
		"task_updated",
		map[string]string{
			"old_status": "Not Started",
			"new_status": "In Progress",
			"updated_by": "bob",
		},
	)
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "mail.example.com:587", sent[0].addr)
	assert.Equal(t, "noreply@example.com", sent[0].from)
	assert.Equal(t, []string{"dev@example.com", "pm@example.com"}, sent[0].to)
	assert.Contains(t, sent[0].msg, "Subject: Task Updated: Fix login bug")
	assert.Contains(t, sent[0].msg, "A task you are involved in was updated.")
	assert.Contains(t, sent[0].msg, "old_status: Not Started")
	assert.Contains(t, sent[0].msg, "new_status: In Progress")
}

func TestSendNoRecipients(t *testing.T) {
	var sent []sentMail
	s := captureSender(testEmailConfig(), &sent, nil)

	err := s.Send(context.Background(), nil, "subject", "task_assigned", nil)
	require.NoError(t, err)
	assert.Empty(t, sent, "no mail without recipients")
}

func TestSendLogOnlyModeWithoutHost(t *testing.T) {
	var sent []sentMail
	cfg := testEmailConfig()
	cfg.Host = ""
	s := captureSender(cfg, &sent, nil)

	err := s.Send(context.Background(), []string{"dev@example.com"}, "subject", "task_assigned", nil)
	require.NoError(t, err)
	assert.Empty(t, sent, "log-only mode never dials SMTP")
}

func TestSendFailure(t *testing.T) {
	var sent []sentMail
	s := captureSender(testEmailConfig(), &sent, errors.New("connection refused"))

	err := s.Send(context.Background(), []string{"dev@example.com"}, "subject", "task_assigned", nil)
	assert.Error(t, err)
}

func TestRenderBodyTemplates(t *testing.T) {
	assigned := renderBody("task_assigned", map[string]string{"task_title": "Fix login bug"})
	assert.Contains(t, assigned, "You have been assigned a new task.")
	assert.Contains(t, assigned, "task_title: Fix login bug")

	other := renderBody("unknown", nil)
	assert.Contains(t, other, "Notification from TaskHub.")
}
