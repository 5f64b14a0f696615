package payments

import (
	"context"
	"errors"

	"farmgate/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Stripe struct {
	api *client.API
}

// NewStripe builds the provider for a secret key. backends may be nil for
// the default Stripe endpoints.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api}
}

func (s *Stripe) Method() models.PaymentMethod { return models.PaymentStripe }

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Cents()),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("buyer", req.Buyer)
	params.AddMetadata("orderId", req.OrderID)
	params.SetIdempotencyKey("checkout-" + req.OrderID)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Msg != "" {
			return Intent{}, errors.New(se.Msg)
		}
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientHandle: pi.ClientSecret}, nil
}
