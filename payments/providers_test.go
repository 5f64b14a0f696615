package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"farmgate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestStripeCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "1250", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[orderId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc"}`))
	}))
	defer srv.Close()

	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(srv.URL),
			HTTPClient:        srv.Client(),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}),
	}
	p := NewStripe("sk_test_x", backends)

	amount, err := models.MoneyFromString("12.50")
	require.NoError(t, err)
	intent, err := p.CreateIntent(context.Background(), IntentRequest{OrderID: "order-1", Buyer: "b", Amount: amount})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientHandle)
}

func TestPayPalCreateIntent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/oauth2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":32400}`))
		case "/v2/checkout/orders":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[
				{"href":"https://example.test/self","rel":"self","method":"GET"},
				{"href":"https://example.test/approve?token=5O190127TN364715T","rel":"approve","method":"GET"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := NewPayPal("id", "secret", srv.URL, "http://shop.test")
	require.NoError(t, err)

	intent, err := p.CreateIntent(context.Background(), IntentRequest{OrderID: "order-1", Amount: models.MoneyFromInt(7)})
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", intent.ID)
	assert.Equal(t, "https://example.test/approve?token=5O190127TN364715T", intent.ClientHandle)

	assert.Equal(t, "CAPTURE", body["intent"])
	units := body["purchase_units"].([]any)
	amount := units[0].(map[string]any)["amount"].(map[string]any)
	assert.Equal(t, "7.00", amount["value"])
	assert.Equal(t, "USD", amount["currency_code"])
}

func TestPayPalUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/oauth2/token" {
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":32400}`))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed."}`))
	}))
	defer srv.Close()

	p, err := NewPayPal("id", "secret", srv.URL, "http://shop.test")
	require.NoError(t, err)

	_, err = p.CreateIntent(context.Background(), IntentRequest{OrderID: "o", Amount: models.MoneyFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, "The requested action could not be performed.", err.Error())
}
