package routes

import (
	"net/http"
	"time"

	"farmgate/metrics"
	"farmgate/middleware"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
)

const idempotencyTTL = 24 * time.Hour

type mw = func(httprouter.Handle) httprouter.Handle

// handle registers h under method and path, observed as path.
func handle(router *httprouter.Router, d *Deps, method, path string, h httprouter.Handle, mws ...mw) {
	chain := append([]mw{middleware.Observe(d.Logger, path)}, mws...)
	router.Handle(method, path, middleware.Chain(chain...)(h))
}

func Index(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
}

func AddUtilityRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/health", Index)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())
}

func AddAuthRoutes(router *httprouter.Router, d *Deps) {
	handle(router, d, http.MethodPost, "/api/auth/signup", d.Users.Signup, d.RateLimiter.Limit)
	handle(router, d, http.MethodPost, "/api/auth/login", d.Users.Login, d.RateLimiter.Limit)
	handle(router, d, http.MethodPost, "/api/auth/logout", d.Users.Logout, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/auth/me", d.Users.Me, d.Auth.Authenticate)
}

func AddProductRoutes(router *httprouter.Router, d *Deps) {
	handle(router, d, http.MethodGet, "/api/products", d.Products.List)
	handle(router, d, http.MethodGet, "/api/products/:id", d.Products.Get)
	handle(router, d, http.MethodPost, "/api/products", d.Products.Create, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodPut, "/api/products/:id", d.Products.Update, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodDelete, "/api/products/:id", d.Products.Delete, d.RateLimiter.Limit, d.Auth.Authenticate)
}

func AddOrderRoutes(router *httprouter.Router, d *Deps) {
	handle(router, d, http.MethodPost, "/api/orders", d.Orders.PlaceOrder, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/orders/my-orders", d.Orders.MyOrders, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/orders/my-products", d.Orders.OrdersForMyProducts, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/orders/view/:id", d.Orders.GetOrder, d.Auth.Authenticate)
	handle(router, d, http.MethodPut, "/api/orders/:id", d.Orders.UpdateStatus, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodDelete, "/api/orders/:id", d.Orders.CancelOrder, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodPut, "/api/orders/:id/add-product", d.Orders.AddProduct, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodPut, "/api/orders/:id/remove-product/:productId", d.Orders.RemoveProduct, d.RateLimiter.Limit, d.Auth.Authenticate)
}

func AddPaymentRoutes(router *httprouter.Router, d *Deps) {
	checkout := []mw{d.RateLimiter.Limit, d.Auth.Authenticate, middleware.Idempotency(d.Redis, idempotencyTTL)}
	handle(router, d, http.MethodPost, "/api/payments/place-order-stripe", d.Payments.PlaceOrderStripe, checkout...)
	handle(router, d, http.MethodPost, "/api/payments/place-order-paypal", d.Payments.PlaceOrderPayPal, checkout...)
}

// Webhooks authenticate by provider signature, not by session.
func AddWebhookRoutes(router *httprouter.Router, d *Deps) {
	handle(router, d, http.MethodPost, "/api/webhooks/stripe", d.Webhooks.Stripe)
	handle(router, d, http.MethodPost, "/api/webhooks/paypal", d.Webhooks.PayPal)
}

func AddDeliveryRoutes(router *httprouter.Router, d *Deps) {
	handle(router, d, http.MethodPost, "/api/delivery/accept", d.Deliveries.Accept, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/delivery/my-active", d.Deliveries.MyActive, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/delivery/available", d.Deliveries.Available, d.Auth.Authenticate)
	handle(router, d, http.MethodGet, "/api/delivery/slip/:id", d.Deliveries.Slip, d.Auth.Authenticate)
	handle(router, d, http.MethodPut, "/api/delivery/:id", d.Deliveries.UpdateStatus, d.RateLimiter.Limit, d.Auth.Authenticate)
	handle(router, d, http.MethodDelete, "/api/delivery/:id", d.Deliveries.Cancel, d.RateLimiter.Limit, d.Auth.Authenticate)
}
