package orders

import "time"

// Order statuses. Pending is the only status an order is created with and
// Shipped is terminal.
const (
	StatusPending = "Pending"
	StatusShipped = "Shipped"
)

// LineItem is one print in an order.
type LineItem struct {
	PrintID  string  `json:"print_id" bson:"print_id" dynamodbav:"print_id"`
	Title    string  `json:"title,omitempty" bson:"title,omitempty" dynamodbav:"title,omitempty"`
	Quantity int     `json:"quantity" bson:"quantity" dynamodbav:"quantity"`
	Price    float64 `json:"price" bson:"price" dynamodbav:"price"`
}

// Order represents the document stored in the orders collection.
type Order struct {
	ID             string     `json:"_id" bson:"_id" dynamodbav:"_id"` // PK
	Email          string     `json:"email" bson:"email" dynamodbav:"email"`
	Name           string     `json:"name,omitempty" bson:"name,omitempty" dynamodbav:"name,omitempty"`
	Items          []LineItem `json:"items" bson:"items" dynamodbav:"items"`
	Total          float64    `json:"total" bson:"total" dynamodbav:"total"`
	TransactionID  string     `json:"transaction_id,omitempty" bson:"transaction_id,omitempty" dynamodbav:"transaction_id,omitempty"`
	Status         string     `json:"status" bson:"status" dynamodbav:"status"` // Pending | Shipped
	IdempotencyKey string     `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty" dynamodbav:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}

// Submission is an order as the client sent it. It is stored as given:
// totals are not recomputed.
type Submission struct {
	Email         string
	Name          string
	Items         []LineItem
	Total         float64
	TransactionID string
}

// Outcome is the result of a submit. Replayed is set when the order was
// created by an earlier request with the same idempotency key.
type Outcome struct {
	Order    *Order
	Replayed bool
}
