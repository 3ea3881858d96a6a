package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of delivering them.
// Used when no queue or mail server is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, msg Message) error {
	l.log.Info("notification",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("order_id", msg.OrderID),
	)
	return nil
}
