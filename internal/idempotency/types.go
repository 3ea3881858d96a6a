package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// IdempotencyRecord is the shape persisted in the idempotency collection.
type IdempotencyRecord struct {
	IdempotencyKey string    `json:"idempotency_key" bson:"idempotency_key" dynamodbav:"idempotency_key"` // PK
	Status         string    `json:"status" bson:"status" dynamodbav:"status"`
	OrderID        string    `json:"order_id,omitempty" bson:"order_id,omitempty" dynamodbav:"order_id,omitempty"`
	Note           string    `json:"note,omitempty" bson:"note,omitempty" dynamodbav:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
	ExpiresAt      int64     `json:"expires_at" bson:"expires_at" dynamodbav:"expires_at"` // TTL epoch seconds
}

// Expired reports whether the record's TTL has passed at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
