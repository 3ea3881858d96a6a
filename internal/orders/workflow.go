package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/idempotency"
	"github.com/imrishuroy/storykeeper/internal/notify"
)

var (
	// ErrInProgress is returned when another request holding the same
	// idempotency key has not finished.
	ErrInProgress = errors.New("order request already in progress")
	// ErrPersistence is returned when the order could not be stored. No
	// notification is sent in that case.
	ErrPersistence = errors.New("order could not be persisted")
)

// Dispatcher sends a notification without blocking the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message)
}

// Workflow completes orders: claim the idempotency key, persist the
// order, then send the confirmation in the background.
type Workflow struct {
	orders   *Store
	keys     *idempotency.Store
	dispatch Dispatcher
	log      *zap.Logger
	newID    func() string
}

func NewWorkflow(orders *Store, keys *idempotency.Store, d Dispatcher, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{orders: orders, keys: keys, dispatch: d, log: log, newID: uuid.NewString}
}

// Submit stores sub under idempotency key. A key that already produced an
// order replays that order instead of creating a second one.
func (w *Workflow) Submit(ctx context.Context, key string, sub Submission) (*Outcome, error) {
	orderID := w.newID()

	prev, acquired, err := w.keys.Claim(ctx, key, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !acquired {
		return w.replay(ctx, key, prev)
	}

	o := &Order{
		ID:             orderID,
		Email:          sub.Email,
		Name:           sub.Name,
		Items:          sub.Items,
		Total:          sub.Total,
		TransactionID:  sub.TransactionID,
		Status:         StatusPending,
		IdempotencyKey: key,
	}
	if err := w.orders.Create(ctx, o); err != nil {
		if mErr := w.keys.MarkFailed(ctx, key, err.Error()); mErr != nil {
			w.log.Error("mark idempotency key failed", zap.String("idempotency_key", key), zap.Error(mErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// The order exists; a stale IN_PROGRESS key only delays retries until it expires.
	if err := w.keys.MarkDone(ctx, key, o.ID); err != nil {
		w.log.Warn("mark idempotency key done", zap.String("idempotency_key", key), zap.String("order_id", o.ID), zap.Error(err))
	}

	w.dispatch.Dispatch(ctx, ConfirmationMessage(o))

	w.log.Info("order created", zap.String("order_id", o.ID), zap.String("idempotency_key", key))
	return &Outcome{Order: o}, nil
}

func (w *Workflow) replay(ctx context.Context, key string, prev *idempotency.IdempotencyRecord) (*Outcome, error) {
	if prev.Status != idempotency.StatusDone {
		return nil, ErrInProgress
	}
	o, err := w.orders.Get(ctx, prev.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %s for key %s is missing", ErrPersistence, prev.OrderID, key)
	}
	w.log.Info("order replayed", zap.String("order_id", o.ID), zap.String("idempotency_key", key))
	return &Outcome{Order: o, Replayed: true}, nil
}
