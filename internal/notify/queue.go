package notify

import (
	"context"
	"fmt"

	"financebackend/internal/amqp"
	"financebackend/internal/core"
)

// QueueNotifier hands email off to the notification queue instead of talking
// to SMTP inline. The mailer worker picks the message up and delivers it.
type QueueNotifier struct {
	client *amqp.Client
}

func NewQueueNotifier(client *amqp.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// Send implements jobs.Notifier.
func (n *QueueNotifier) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("empty recipient: %w", core.ErrValidation)
	}
	msg := amqp.NewNotificationMessage(to, subject, body)
	if err := n.client.PublishNotification(ctx, msg); err != nil {
		return fmt.Errorf("enqueue notification: %w: %w", core.ErrTransient, err)
	}
	return nil
}
