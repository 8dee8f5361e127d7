// Package jobs defines the asynq background tasks: the hourly sweeps over
// finance review and recurring requests, and transactional mail delivery.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskOverdueSweep evaluates the approval timing clock over requests
	// sitting in finance review.
	TaskOverdueSweep = "sweep:overdue"
	// TaskRecurringSweep evaluates due dates over active recurring requests.
	TaskRecurringSweep = "sweep:recurring"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SMTPConfig carries the mail relay settings.
type SMTPConfig struct {
	Addr string // host:port
	From string
	User string
	Pass string
	Host string // for AUTH; derived from Addr when empty
}

// NewSendEmailHandler returns the handler for TaskTypeSendEmail.
func NewSendEmailHandler(cfg SMTPConfig, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if cfg.Addr == "" {
			logger.Info("mail relay not configured, dropping email",
				slog.String("to", payload.To),
				slog.String("subject", payload.Subject),
			)
			return nil
		}

		msg := strings.Join([]string{
			"From: " + cfg.From,
			"To: " + payload.To,
			"Subject: " + payload.Subject,
			"MIME-Version: 1.0",
			"Content-Type: text/plain; charset=UTF-8",
			"",
			payload.Body,
		}, "\r\n")

		var auth smtp.Auth
		if cfg.User != "" {
			host := cfg.Host
			if host == "" {
				host = strings.SplitN(cfg.Addr, ":", 2)[0]
			}
			auth = smtp.PlainAuth("", cfg.User, cfg.Pass, host)
		}
		if err := smtp.SendMail(cfg.Addr, auth, cfg.From, []string{payload.To}, []byte(msg)); err != nil {
			return fmt.Errorf("send mail to %s: %w", payload.To, err)
		}
		return nil
	}
}
