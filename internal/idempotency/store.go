package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/storykeeper/internal/store"
)

// ErrContended is returned by Claim when the key kept changing hands
// between reads and writes.
var ErrContended = errors.New("idempotency key contended")

const claimAttempts = 3

// Store encapsulates idempotency operations against the document store.
type Store struct {
	db        store.Store
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: how long a key blocks reuse (e.g., 24*time.Hour)
func NewStore(db store.Store, ttlWindow time.Duration) *Store {
	return &Store{
		db:        db,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// CreateIfNotExists creates an idempotency record with status IN_PROGRESS if the key does not exist.
// Returns (created=true, nil) if successfully created.
// Returns (created=false, nil) if the record already exists (caller should Get to inspect).
func (s *Store) CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error) {
	now := s.nowFunc()
	rec := IdempotencyRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	if _, err := s.db.Insert(ctx, store.Idempotency, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("create idempotency record: %w", err)
	}
	return true, nil
}

// Get retrieves an idempotency record by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := s.db.FindByKey(ctx, store.Idempotency, key, &rec)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

// Claim takes key for a new request that will create orderID. When an
// earlier request holds the key, Claim returns its record and
// acquired=false. FAILED and expired keys are taken over.
func (s *Store) Claim(ctx context.Context, key, orderID string) (*IdempotencyRecord, bool, error) {
	for i := 0; i < claimAttempts; i++ {
		created, err := s.CreateIfNotExists(ctx, key, orderID)
		if err != nil {
			return nil, false, err
		}
		if created {
			return nil, true, nil
		}

		rec, err := s.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if rec == nil {
			continue
		}

		switch {
		case rec.Expired(s.nowFunc()):
			if _, err := s.releaseExpired(ctx, rec); err != nil {
				return nil, false, err
			}
		case rec.Status == StatusFailed:
			won, err := s.retake(ctx, key, orderID)
			if err != nil {
				return nil, false, err
			}
			if won {
				return rec, true, nil
			}
		default:
			return rec, false, nil
		}
	}
	return nil, false, fmt.Errorf("claim %s: %w", key, ErrContended)
}

// retake moves a FAILED record back to IN_PROGRESS. Only one concurrent
// caller observes won=true.
func (s *Store) retake(ctx context.Context, key, orderID string) (bool, error) {
	now := s.nowFunc()
	n, err := s.db.UpdateMatching(ctx, store.Idempotency,
		store.Filter{"idempotency_key": key, "status": StatusFailed},
		store.Document{
			"status":     StatusInProgress,
			"order_id":   orderID,
			"note":       "",
			"updated_at": now,
			"expires_at": now.Add(s.ttlWindow).Unix(),
		},
	)
	if err != nil {
		return false, fmt.Errorf("retake idempotency record: %w", err)
	}
	return n == 1, nil
}

// releaseExpired deletes rec if nobody has refreshed it since it was read.
func (s *Store) releaseExpired(ctx context.Context, rec *IdempotencyRecord) (bool, error) {
	n, err := s.db.DeleteMatching(ctx, store.Idempotency, store.Filter{
		"idempotency_key": rec.IdempotencyKey,
		"expires_at":      rec.ExpiresAt,
	})
	if err != nil {
		return false, fmt.Errorf("release expired idempotency record: %w", err)
	}
	return n == 1, nil
}

// MarkDone sets status to DONE and records the order the key produced.
func (s *Store) MarkDone(ctx context.Context, key, orderID string) error {
	_, err := s.db.UpdateMatching(ctx, store.Idempotency,
		store.Filter{"idempotency_key": key},
		store.Document{
			"status":     StatusDone,
			"order_id":   orderID,
			"updated_at": s.nowFunc(),
		},
	)
	if err != nil {
		return fmt.Errorf("update idempotency record (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the idempotency record as FAILED and stores a note.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	_, err := s.db.UpdateMatching(ctx, store.Idempotency,
		store.Filter{"idempotency_key": key},
		store.Document{
			"status":     StatusFailed,
			"note":       note,
			"updated_at": s.nowFunc(),
		},
	)
	if err != nil {
		return fmt.Errorf("update idempotency record (mark failed): %w", err)
	}
	return nil
}
