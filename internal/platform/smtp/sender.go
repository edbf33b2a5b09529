// Package smtp implements the outbound email collaborator over net/smtp.
// Rendering is deliberately minimal: the subject plus a key/value dump of
// the template context. A real template engine can replace renderBody
// without touching the senders of email.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sort"
	"strings"

	"github.com/cmorrow/taskhub-api/internal/config"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/task"
)

// Sender delivers notification emails over SMTP. With no host configured it
// runs in log-only mode: every send is logged and reported as successful, so
// deployments without a mail relay still work.
type Sender struct {
	cfg    config.EmailConfig
	logger *slog.Logger

	// sendMail is smtp.SendMail, injectable for testing.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Ensure Sender implements the task.EmailSender interface
var _ task.EmailSender = (*Sender)(nil)

// NewSender creates a new Sender from the email configuration.
// If log is nil, the default logger is used.
func NewSender(cfg config.EmailConfig, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		cfg:      cfg,
		logger:   log.With(slog.String("component", "smtp_sender")),
		sendMail: smtp.SendMail,
	}
}

// Send implements task.EmailSender.Send.
func (s *Sender) Send(
	ctx context.Context,
	recipients []string,
	subject, templateKey string,
	data map[string]string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(recipients) == 0 {
		return nil
	}

	if s.cfg.Host == "" {
		log.Info("email delivery disabled, logging instead",
			slog.Int("recipient_count", len(recipients)),
			slog.String("subject", subject),
			slog.String("template", templateKey))
		return nil
	}

	msg := s.buildMessage(recipients, subject, templateKey, data)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.sendMail(addr, auth, s.cfg.From, recipients, msg); err != nil {
		log.Error("failed to send email",
			slog.String("error", err.Error()),
			slog.Int("recipient_count", len(recipients)),
			slog.String("subject", subject))
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("email sent",
		slog.Int("recipient_count", len(recipients)),
		slog.String("subject", subject),
		slog.String("template", templateKey))
	return nil
}

// buildMessage assembles the RFC 822 message bytes.
func (s *Sender) buildMessage(
	recipients []string,
	subject, templateKey string,
	data map[string]string,
) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(renderBody(templateKey, data))
	return []byte(b.String())
}

// renderBody produces a plain-text body for the given template context.
// Keys are sorted for deterministic output.
func renderBody(templateKey string, data map[string]string) string {
	var b strings.Builder

	switch templateKey {
	case "task_assigned":
		b.WriteString("You have been assigned a new task.\r\n\r\n")
	case "task_updated":
		b.WriteString("A task you are involved in was updated.\r\n\r\n")
	default:
		b.WriteString("Notification from TaskHub.\r\n\r\n")
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, data[k])
	}

	return b.String()
}
