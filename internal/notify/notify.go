// Package notify delivers best-effort notifications. Delivery never feeds
// back into the request that triggered it: failures are logged and counted.
package notify

import "context"

// Kinds of notification.
const (
	KindOrderConfirmation = "order_confirmation"
)

// Message is one outbound notification. It is also the SQS message body
// consumed by the worker.
type Message struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	OrderID string `json:"order_id,omitempty"`
}

// Notifier delivers a message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// FailureRecorder counts notifications that could not be delivered.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, kind string, err error)
}
