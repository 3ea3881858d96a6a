package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// Stripe issues payment intents through the Stripe API. Network retries
// are disabled: a failed create is reported, never repeated.
type Stripe struct {
	api *client.API
}

// NewStripe returns a Stripe issuer. baseURL overrides the API endpoint
// and may be empty.
func NewStripe(secretKey, baseURL string) (*Stripe, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key not configured")
	}
	cfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})
	return &Stripe{api: api}, nil
}

func (s *Stripe) CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (*Intent, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinorUnits),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return nil, &ProcessorError{Code: string(se.Code), Message: se.Msg, Err: err}
		}
		return nil, &ProcessorError{Message: err.Error(), Err: err}
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: pi.Amount, Currency: string(pi.Currency)}, nil
}
