package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/aws"
	"github.com/imrishuroy/storykeeper/internal/notify"
)

// Processor delivers queued notifications. Delivery is best effort: a
// failed message is logged and counted, never redelivered.
type Processor struct {
	sender  notify.Notifier
	metrics Recorder
	log     *zap.Logger
}

// NewProcessor creates a new worker processor.
func NewProcessor(sender notify.Notifier, metrics Recorder, log *zap.Logger) *Processor {
	return &Processor{sender: sender, metrics: metrics, log: log}
}

// Handle processes every record of an SQS batch. It only fails for a
// cancelled context so that Lambda does not redeliver the batch.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.log.Debug("received sqs batch", zap.Int("records", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.processMessage(ctx, rec)
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) {
	log := p.log.With(zap.String("message_id", rec.MessageId))

	var msg notify.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		log.Error("invalid message body; dropping", zap.Error(err))
		p.metrics.RecordFailure(ctx, "invalid_body", err)
		return
	}
	log = log.With(zap.String("kind", msg.Kind), zap.String("order_id", msg.OrderID))

	if err := p.sender.Notify(ctx, msg); err != nil {
		log.Warn("notification delivery failed", zap.Error(err))
		p.metrics.RecordFailure(ctx, msg.Kind, err)
		return
	}

	if err := p.metrics.Count(ctx, aws.MetricNotificationsSent, map[string]string{"Kind": msg.Kind}); err != nil {
		log.Debug("publish metric failed", zap.Error(err))
	}
	log.Info("notification delivered")
}
