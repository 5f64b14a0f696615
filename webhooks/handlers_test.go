package webhooks

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"farmgate/models"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestStripeHandler(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 10, models.Order{ID: "o1", Buyer: "b", PaymentIntentID: "pi_1"})
	h := NewHandler(f.rec)
	router := httprouter.New()
	router.POST("/api/webhooks/stripe", h.Stripe)

	payload := stripeEvent("evt_1", "payment_intent.succeeded", "pi_1")

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header = stripeHeader(payload, secret)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"confirmed"`)

	// unknown orders are acknowledged
	other := stripeEvent("evt_2", "payment_intent.succeeded", "pi_nope")
	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(other))
	req.Header = stripeHeader(other, secret)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
