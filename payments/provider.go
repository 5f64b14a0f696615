// Package payments creates provider payment intents for card and PayPal
// checkouts and records the pending order they will settle.
package payments

import (
	"context"

	"farmgate/models"
)

// IntentRequest is what a provider needs to start collecting a payment.
type IntentRequest struct {
	OrderID string
	Buyer   string
	Amount  models.Money
}

// Intent is the provider side of a checkout. ID is the identifier later
// quoted by the provider's webhooks; ClientHandle is what the client needs to
// complete payment (Stripe client secret, PayPal approval URL).
type Intent struct {
	ID           string
	ClientHandle string
}

type Provider interface {
	Method() models.PaymentMethod
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
