// Package payment creates payment intents with an external processor. The
// service never moves money itself: it hands the client a secret to
// confirm the payment with.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// DefaultCurrency is used when a request names none.
const DefaultCurrency = "usd"

// Intent is a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// Issuer creates payment intents.
type Issuer interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (*Intent, error)
}

// ProcessorError is a failure reported by the payment processor. Message
// is safe to show to the client as is.
type ProcessorError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment processor: %s (%s)", e.Message, e.Code)
	}
	return "payment processor: " + e.Message
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// ErrInvalidAmount is returned for prices that cannot be charged.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// ToMinorUnits converts a price in major units (dollars) to the integer
// minor units (cents) processors expect.
func ToMinorUnits(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, ErrInvalidAmount
	}
	cents := math.Round(price * 100)
	if cents < 1 || cents > math.MaxInt64/2 {
		return 0, ErrInvalidAmount
	}
	return int64(cents), nil
}
