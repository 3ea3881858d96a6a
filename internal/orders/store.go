package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/storykeeper/internal/store"
)

var (
	// ErrStatusMismatch is returned when the order is not in the expected status.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrNotFound is returned by Ship for an unknown order.
	ErrNotFound = errors.New("order not found")
)

// Store encapsulates operations on the orders collection.
type Store struct {
	db      store.Store
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(db store.Store) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

// Create inserts o. o.ID must be set by the caller.
func (s *Store) Create(ctx context.Context, o *Order) error {
	now := s.nowFunc().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Items == nil {
		o.Items = []LineItem{}
	}

	if _, err := s.db.Insert(ctx, store.Orders, o); err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db.FindByKey(ctx, store.Orders, id, &o)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

// List returns every order.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	return s.find(ctx, nil)
}

// ListByEmail returns the orders placed by email.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	return s.find(ctx, store.Filter{"email": email})
}

func (s *Store) find(ctx context.Context, f store.Filter) ([]Order, error) {
	out := []Order{}
	if err := s.db.FindMatching(ctx, store.Orders, f, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if the condition failed.
func (s *Store) UpdateStatus(ctx context.Context, id, expectedStatus, newStatus string) error {
	n, err := s.db.UpdateMatching(ctx, store.Orders,
		store.Filter{"_id": id, "status": expectedStatus},
		store.Document{"status": newStatus, "updated_at": s.nowFunc().UTC()},
	)
	if err != nil {
		return fmt.Errorf("update order status %s: %w", id, err)
	}
	if n == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// Ship moves an order from Pending to Shipped and returns it. Shipping an
// order that is already Shipped changes nothing and reports changed=false.
func (s *Store) Ship(ctx context.Context, id string) (o *Order, changed bool, err error) {
	err = s.UpdateStatus(ctx, id, StatusPending, StatusShipped)
	if err != nil && !errors.Is(err, ErrStatusMismatch) {
		return nil, false, err
	}
	changed = err == nil

	o, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if o == nil {
		return nil, false, ErrNotFound
	}
	if !changed && o.Status != StatusShipped {
		return o, false, ErrStatusMismatch
	}
	return o, changed, nil
}
