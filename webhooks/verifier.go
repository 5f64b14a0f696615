// Package webhooks authenticates payment provider notifications and applies
// the resulting order transitions exactly once.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"farmgate/errs"
	"farmgate/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Kind string

const (
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindIgnored   Kind = "ignored"
)

// Event is a provider notification reduced to what reconciliation needs.
type Event struct {
	ID       string
	Type     string
	Kind     Kind
	IntentID string
}

// Verifier authenticates a raw notification and normalises it.
// Authentication failures wrap errs.ErrSignature.
type Verifier interface {
	Provider() models.PaymentMethod
	Parse(ctx context.Context, payload []byte, header http.Header) (Event, error)
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

func (v *StripeVerifier) Provider() models.PaymentMethod { return models.PaymentStripe }

func (v *StripeVerifier) Parse(_ context.Context, payload []byte, header http.Header) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s", errs.ErrSignature, err.Error())
	}

	out := Event{ID: ev.ID, Type: string(ev.Type), Kind: KindIgnored}
	switch ev.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.Kind = KindSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Kind = KindFailed
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return Event{}, fmt.Errorf("%w: malformed payment intent", errs.ErrInvalidInput)
	}
	out.IntentID = pi.ID
	return out, nil
}

// SignatureChecker confirms a PayPal notification with PayPal.
type SignatureChecker interface {
	VerifyWebhook(ctx context.Context, payload []byte, header http.Header, webhookID string) (bool, error)
}

// PayPalVerifier parses PayPal notifications. Signatures are only checked
// when a webhook id and checker are configured.
type PayPalVerifier struct {
	checker   SignatureChecker
	webhookID string
}

func NewPayPalVerifier(checker SignatureChecker, webhookID string) *PayPalVerifier {
	return &PayPalVerifier{checker: checker, webhookID: webhookID}
}

func (v *PayPalVerifier) Provider() models.PaymentMethod { return models.PaymentPayPal }

// Verifies reports whether signature checking is on.
func (v *PayPalVerifier) Verifies() bool { return v.checker != nil && v.webhookID != "" }

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (v *PayPalVerifier) Parse(ctx context.Context, payload []byte, header http.Header) (Event, error) {
	if v.Verifies() {
		ok, err := v.checker.VerifyWebhook(ctx, payload, header, v.webhookID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: %s", errs.ErrSignature, err.Error())
		}
		if !ok {
			return Event{}, errs.ErrSignature
		}
	}

	var pe paypalEvent
	if err := json.Unmarshal(payload, &pe); err != nil {
		return Event{}, fmt.Errorf("%w: malformed PayPal event", errs.ErrInvalidInput)
	}

	out := Event{ID: pe.ID, Type: pe.EventType, Kind: KindIgnored}
	switch pe.EventType {
	case "CHECKOUT.ORDER.APPROVED", "CHECKOUT.ORDER.COMPLETED":
		out.Kind, out.IntentID = KindSucceeded, pe.Resource.ID
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Kind, out.IntentID = KindSucceeded, pe.Resource.SupplementaryData.RelatedIDs.OrderID
	case "CHECKOUT.ORDER.VOIDED":
		out.Kind, out.IntentID = KindFailed, pe.Resource.ID
	case "PAYMENT.CAPTURE.DENIED":
		out.Kind, out.IntentID = KindFailed, pe.Resource.SupplementaryData.RelatedIDs.OrderID
	}
	if out.Kind != KindIgnored && out.IntentID == "" {
		out.Kind = KindIgnored
	}
	return out, nil
}
