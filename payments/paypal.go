package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"farmgate/models"

	"github.com/plutov/paypal/v4"
)

type PayPal struct {
	client    *paypal.Client
	returnURL string
	cancelURL string

	mu     sync.Mutex
	authed bool
}

// NewPayPal builds the provider against baseURL (paypal.APIBaseSandBox or
// paypal.APIBaseLive). clientURL is where the buyer lands after approving or
// cancelling.
func NewPayPal(clientID, secret, baseURL, clientURL string) (*PayPal, error) {
	c, err := paypal.NewClient(clientID, secret, baseURL)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	return &PayPal{
		client:    c,
		returnURL: clientURL + "/paypal-success",
		cancelURL: clientURL + "/paypal-cancel",
	}, nil
}

func (p *PayPal) Method() models.PaymentMethod { return models.PaymentPayPal }

// ensureToken fetches the first access token; the client refreshes it
// afterwards.
func (p *PayPal) ensureToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authed {
		return nil
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return err
	}
	p.authed = true
	return nil
}

func (p *PayPal) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := p.ensureToken(ctx); err != nil {
		return Intent{}, describePayPal(err)
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: req.OrderID,
		CustomID:    req.OrderID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    req.Amount.StringFixed(2),
		},
	}}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: p.returnURL,
		CancelURL: p.cancelURL,
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return Intent{}, describePayPal(err)
	}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return Intent{ID: order.ID, ClientHandle: link.Href}, nil
		}
	}
	return Intent{}, errors.New("paypal order has no approve link")
}

func describePayPal(err error) error {
	var pe *paypal.ErrorResponse
	if errors.As(err, &pe) && pe.Message != "" {
		return errors.New(pe.Message)
	}
	return err
}

// VerifyWebhook asks PayPal whether the notification was signed for
// webhookID.
func (p *PayPal) VerifyWebhook(ctx context.Context, payload []byte, header http.Header, webhookID string) (bool, error) {
	if err := p.ensureToken(ctx); err != nil {
		return false, describePayPal(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header = header.Clone()

	res, err := p.client.VerifyWebhookSignature(ctx, req, webhookID)
	if err != nil {
		return false, describePayPal(err)
	}
	return res.VerificationStatus == "SUCCESS", nil
}
