package routes

import (
	"farmgate/auth"
	"farmgate/delivery"
	"farmgate/middleware"
	"farmgate/orders"
	"farmgate/payments"
	"farmgate/products"
	"farmgate/ratelim"
	"farmgate/webhooks"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps carries what the route table wires together. Redis may be nil.
type Deps struct {
	Logger      *zap.Logger
	Auth        *middleware.Authenticator
	RateLimiter *ratelim.RateLimiter
	Redis       *redis.Client

	Users      *auth.Handler
	Products   *products.Handler
	Orders     *orders.Handler
	Payments   *payments.Handler
	Webhooks   *webhooks.Handler
	Deliveries *delivery.Handler
}

func RoutesWrapper(router *httprouter.Router, d *Deps) {
	AddUtilityRoutes(router, d)
	AddAuthRoutes(router, d)
	AddProductRoutes(router, d)
	AddOrderRoutes(router, d)
	AddPaymentRoutes(router, d)
	AddWebhookRoutes(router, d)
	AddDeliveryRoutes(router, d)
}
