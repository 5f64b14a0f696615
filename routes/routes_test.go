package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmgate/auth"
	"farmgate/authz"
	"farmgate/delivery"
	"farmgate/middleware"
	"farmgate/mq"
	"farmgate/orders"
	"farmgate/payments"
	"farmgate/products"
	"farmgate/ratelim"
	"farmgate/stock"
	"farmgate/store/memstore"
	"farmgate/webhooks"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("routes-test-secret")

func newServer(t *testing.T) http.Handler {
	t.Helper()
	st := memstore.New()
	az := authz.MustDefault()
	ledger := stock.NewLedger(st)
	events := mq.Discard{}

	orderSvc := orders.NewService(st, st, ledger, az, events)
	d := &Deps{
		Logger:      zap.NewNop(),
		Auth:        middleware.NewAuthenticator(secret, nil),
		RateLimiter: ratelim.NewRateLimiter(600, 100, time.Minute),
		Users:       auth.NewHandler(auth.NewService(st, secret, time.Hour, nil), false),
		Products:    products.NewHandler(products.NewService(st, ledger, az)),
		Orders:      orders.NewHandler(orderSvc),
		Payments:    payments.NewHandler(payments.NewService(st, st, az, time.Second)),
		Webhooks:    webhooks.NewHandler(webhooks.NewReconciler(st, ledger, events, nil)),
		Deliveries:  delivery.NewHandler(delivery.NewService(st, st, az, nil, events, secret)),
	}
	router := httprouter.New()
	RoutesWrapper(router, d)
	return router
}

type client struct {
	t      *testing.T
	server http.Handler
	token  string
}

func (c *client) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.server.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func signup(t *testing.T, server http.Handler, username, role string) *client {
	t.Helper()
	c := &client{t: t, server: server}
	rec, out := c.do(http.MethodPost, "/api/auth/signup", `{"fullName":"`+username+`","username":"`+username+
		`","email":"`+username+`@example.com","password":"secret1","confirmPassword":"secret1",`+
		`"gender":"other","role":"`+role+`","phone":"1","address":"a"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c.token = out["token"].(string)
	return c
}

func TestMarketplaceFlow(t *testing.T) {
	server := newServer(t)
	anon := &client{t: t, server: server}

	rec, _ := anon.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = anon.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = anon.do(http.MethodPost, "/api/orders", `{"products":[]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = anon.do(http.MethodPost, "/api/payments/place-order-stripe", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	farmer := signup(t, server, "fern", "farmer")
	buyer := signup(t, server, "bill", "buyer")
	agent := signup(t, server, "ally", "delivery_agent")

	rec, product := farmer.do(http.MethodPost, "/api/products",
		`{"name":"Tomatoes","category":"vegetables","price":"5","stock":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := product["_id"].(string)

	rec, _ = buyer.do(http.MethodPost, "/api/products", `{"name":"X","category":"fruits","price":"1","stock":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, order := buyer.do(http.MethodPost, "/api/orders",
		`{"products":[{"product":"`+productID+`","purchaseAmount":2}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "10", order["totalPrice"])
	orderID := order["_id"].(string)

	rec, product = anon.do(http.MethodGet, "/api/products/"+productID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 8, product["stock"])

	rec, _ = buyer.do(http.MethodGet, "/api/orders/view/"+orderID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = agent.do(http.MethodGet, "/api/delivery/available", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = buyer.do(http.MethodPost, "/api/delivery/accept", `{"orderId":"`+orderID+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = buyer.do(http.MethodDelete, "/api/orders/"+orderID, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, product = anon.do(http.MethodGet, "/api/products/"+productID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, product["stock"])

	rec, order = buyer.do(http.MethodPost, "/api/orders",
		`{"products":[{"product":"`+productID+`","purchaseAmount":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, order = farmer.do(http.MethodPut, "/api/orders/"+order["_id"].(string), `{"status":"shipped"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "shipped", order["status"])

	rec, _ = buyer.do(http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
