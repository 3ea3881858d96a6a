package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imrishuroy/storykeeper/internal/store"
)

func TestCreateGetList(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()

	o := &Order{ID: "o1", Email: "a@example.com", Items: []LineItem{{PrintID: "p1", Quantity: 2, Price: 10}}, Total: 20}
	if err := s.Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &Order{ID: "o2", Email: "b@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Status != StatusPending || got.Total != 20 || len(got.Items) != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got.CreatedAt.Equal(o.CreatedAt.Truncate(0)) {
		t.Fatalf("created_at not round-tripped: %v vs %v", got.CreatedAt, o.CreatedAt)
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", missing, err)
	}

	all, err := s.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	mine, err := s.ListByEmail(ctx, "a@example.com")
	if err != nil || len(mine) != 1 || mine[0].ID != "o1" {
		t.Fatalf("ListByEmail = %+v, %v", mine, err)
	}
	none, err := s.ListByEmail(ctx, "c@example.com")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v, %v", none, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()
	if err := s.Create(ctx, &Order{ID: "o1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateStatus(ctx, "o1", StatusShipped, StatusPending); !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "o1", StatusPending, StatusShipped); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := s.Get(ctx, "o1")
	if got.Status != StatusShipped {
		t.Fatalf("expected Shipped, got %s", got.Status)
	}
}

func TestShip(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.nowFunc = func() time.Time { return created }
	if err := s.Create(ctx, &Order{ID: "o1", Email: "a@example.com", Total: 5}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.nowFunc = func() time.Time { return created.Add(time.Hour) }

	o, changed, err := s.Ship(ctx, "o1")
	if err != nil || !changed {
		t.Fatalf("Ship = %v, %v", changed, err)
	}
	if o.Status != StatusShipped || !o.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("unexpected order after ship: %+v", o)
	}
	if o.Email != "a@example.com" || o.Total != 5 || !o.CreatedAt.Equal(created) {
		t.Fatalf("ship must only touch status: %+v", o)
	}

	_, changed, err = s.Ship(ctx, "o1")
	if err != nil || changed {
		t.Fatalf("second Ship = %v, %v; want no-op", changed, err)
	}

	if _, _, err := s.Ship(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
