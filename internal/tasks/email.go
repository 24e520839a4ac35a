package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/elibrary/internal/notifications"
)

// NotificationAuditor records the delivery outcome of each email.
type NotificationAuditor interface {
	LogNotification(userID uint, action, description string, err error)
}

// SendEmailTask delivers one rendered-on-demand email. Each message is its
// own task with its own retry budget.
type SendEmailTask struct {
	Kind   notifications.Kind `json:"kind"`
	To     string             `json:"to"`
	UserID uint               `json:"user_id,omitempty"`
	Data   notifications.Data `json:"data"`
}

// Config returns the queue configuration for email tasks.
func (t SendEmailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "send_email",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SendEmailProcessor renders and sends the email of a SendEmailTask.
func SendEmailProcessor(renderer *notifications.Renderer, mailer notifications.Mailer, auditor NotificationAuditor) backlite.QueueProcessor[SendEmailTask] {
	return func(ctx context.Context, task SendEmailTask) error {
		if renderer == nil || mailer == nil {
			return fmt.Errorf("email delivery not configured")
		}

		subject, body, err := renderer.Render(task.Kind, task.Data)
		if err == nil {
			err = mailer.Send(ctx, notifications.Message{To: task.To, Subject: subject, HTML: body})
		}

		if auditor != nil {
			auditor.LogNotification(task.UserID, string(task.Kind), fmt.Sprintf("%s to %s", task.Kind, task.To), err)
		}
		if err != nil {
			return fmt.Errorf("send %s email: %w", task.Kind, err)
		}
		return nil
	}
}

// NewSendEmailQueue creates a backlite queue for email tasks.
func NewSendEmailQueue(renderer *notifications.Renderer, mailer notifications.Mailer, auditor NotificationAuditor) backlite.Queue {
	return backlite.NewQueue(SendEmailProcessor(renderer, mailer, auditor))
}

// InlineEnqueuer sends emails on a background goroutine without a durable
// queue. It is used when the task queue is disabled.
type InlineEnqueuer struct {
	process backlite.QueueProcessor[SendEmailTask]
	wg      sync.WaitGroup
}

func NewInlineEnqueuer(renderer *notifications.Renderer, mailer notifications.Mailer, auditor NotificationAuditor) *InlineEnqueuer {
	return &InlineEnqueuer{process: SendEmailProcessor(renderer, mailer, auditor)}
}

func (e *InlineEnqueuer) Enqueue(_ context.Context, task backlite.Task) error {
	email, ok := task.(SendEmailTask)
	if !ok {
		return fmt.Errorf("inline delivery does not support %s tasks", task.Config().Name)
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), email.Config().Timeout)
		defer cancel()
		if err := e.process(ctx, email); err != nil {
			slog.Warn("inline email failed", "kind", email.Kind, "to", email.To, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every email handed to Enqueue has been processed.
func (e *InlineEnqueuer) Wait() {
	e.wg.Wait()
}
