package validation

// OrderItem represents a single order line item.
type OrderItem struct {
	PrintID  string  `json:"print_id" validate:"required"`
	Title    string  `json:"title,omitempty"`
	Quantity int     `json:"quantity" validate:"required,min=1"` // must be >= 1
	Price    float64 `json:"price" validate:"gte=0"`             // price per unit
}

// CreateOrderRequest is the payload for POST /orders. The total is stored
// as sent.
type CreateOrderRequest struct {
	Email         string      `json:"email" validate:"required,email"`
	Name          string      `json:"name,omitempty" validate:"max=200"`
	Items         []OrderItem `json:"items" validate:"required,min=1,dive"` // at least one item
	Total         float64     `json:"total" validate:"gte=0"`
	TransactionID string      `json:"transaction_id,omitempty" validate:"max=255"`
}

// UpdateOrderStatusRequest is the payload for PATCH /orders/:id. An empty
// status means Shipped.
type UpdateOrderStatusRequest struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=Shipped"`
}

// PaymentIntentRequest is the payload for POST /create-payment-intent.
type PaymentIntentRequest struct {
	Price    float64 `json:"price" validate:"required,gt=0"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}
