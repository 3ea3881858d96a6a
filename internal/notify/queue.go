package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Enqueuer publishes a message body with string attributes.
// aws.Publisher satisfies it.
type Enqueuer interface {
	SendMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// QueueNotifier hands messages to a queue for the worker to deliver.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	attrs := map[string]string{
		"kind":     msg.Kind,
		"order_id": msg.OrderID,
	}
	if err := q.queue.SendMessage(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
