package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSendTimeout bounds a single dispatched send.
const DefaultSendTimeout = 15 * time.Second

// Dispatcher runs notifications detached from the caller. A send outlives
// the request that started it and its error never reaches that request.
type Dispatcher struct {
	notifier Notifier
	failures FailureRecorder
	log      *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout sets how long one send may run before its context expires.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher returns a Dispatcher. failures may be nil.
func NewDispatcher(n Notifier, failures FailureRecorder, log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{notifier: n, failures: failures, log: log, timeout: DefaultSendTimeout}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch sends msg in the background. ctx keeps its values but loses its
// cancellation, so a finished request does not abort the send. The send
// gets its own deadline instead.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.send(sendCtx, msg); err != nil {
			d.log.Warn("notification failed",
				zap.String("kind", msg.Kind),
				zap.String("order_id", msg.OrderID),
				zap.Error(err),
			)
			if d.failures != nil {
				d.failures.RecordFailure(context.WithoutCancel(ctx), msg.Kind, err)
			}
			return
		}
		d.log.Debug("notification sent", zap.String("kind", msg.Kind), zap.String("order_id", msg.OrderID))
	}()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return d.notifier.Notify(ctx, msg)
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() when sends are
// still running at the deadline; they carry on in the background.
func (d *Dispatcher) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
