package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmgate/auth"
	"farmgate/authz"
	"farmgate/config"
	"farmgate/db"
	"farmgate/delivery"
	"farmgate/logging"
	"farmgate/middleware"
	"farmgate/mq"
	"farmgate/orders"
	"farmgate/payments"
	"farmgate/products"
	"farmgate/ratelim"
	"farmgate/rdx"
	"farmgate/routes"
	"farmgate/stock"
	"farmgate/store"
	"farmgate/store/memstore"
	"farmgate/webhooks"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// backend is what both the Mongo adapter and the in-memory store provide.
type backend interface {
	store.ProductStore
	store.OrderStore
	store.DeliveryStore
	store.UserStore
}

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, func(context.Context), error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), func(context.Context) {}, nil
	}

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureIndexes(ctx); err != nil {
		_ = database.Close(ctx)
		return nil, nil, err
	}
	logger.Info("connected to MongoDB", zap.String("db", cfg.MongoDB))
	return store.NewMongo(database), func(ctx context.Context) { _ = database.Close(ctx) }, nil
}

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New("farmgate", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	if !dotenv {
		logger.Info("No .env file found; using system environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	backing, closeStore, err := openStore(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("store unavailable", zap.Error(err))
	}

	// Redis is optional: without it there is no product cache, no delivery
	// lock, no webhook dedupe, no token revocation and no event stream.
	var (
		conn        *redis.Client
		productData store.ProductStore = backing
		events      mq.Publisher       = mq.Discard{}
		locker      delivery.Locker
		webhookSeen webhooks.Marks
		revocations middleware.Revocations
		revoker     auth.Revoker
	)
	conn, err = rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable; running without cache, locks and events", zap.Error(err))
	} else {
		productData = store.NewCachedProducts(backing, conn, 5*time.Minute)
		emitter := mq.NewEmitter(conn)
		events = emitter
		locker = rdx.NewLocker(conn, "delivery_lock:", 10*time.Second)
		webhookSeen = rdx.NewMarks(conn, "webhook:", 72*time.Hour)
		denylist := rdx.NewMarks(conn, "auth:revoked:", cfg.TokenTTL)
		revocations, revoker = denylist, denylist

		go func() {
			err := emitter.Listen(ctx, func(ctx context.Context, ev mq.Event) {
				logger.Info("order event",
					zap.String("type", ev.Type),
					zap.String("order", ev.OrderID),
					zap.String("delivery", ev.DeliveryID),
					zap.String("actor", ev.Actor))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("event listener stopped", zap.Error(err))
			}
		}()
	}

	az := authz.MustDefault()
	ledger := stock.NewLedger(productData)

	orderSvc := orders.NewService(backing, productData, ledger, az, events)
	paySvc := payments.NewService(backing, productData, az, cfg.PaymentTimeout)

	verifiers := []webhooks.Verifier{}
	if cfg.Stripe.SecretKey != "" {
		paySvc.Register(payments.NewStripe(cfg.Stripe.SecretKey, nil))
		verifiers = append(verifiers, webhooks.NewStripeVerifier(cfg.Stripe.WebhookSecret))
		if cfg.Stripe.WebhookSecret == "" {
			logger.Warn("stripe webhook secret missing; stripe webhooks will be rejected")
		}
	}
	if cfg.PayPal.ClientID != "" {
		pp, err := payments.NewPayPal(cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.BaseURL, cfg.ClientURL)
		if err != nil {
			logger.Fatal("paypal client", zap.Error(err))
		}
		paySvc.Register(pp)
		ppv := webhooks.NewPayPalVerifier(pp, cfg.PayPal.WebhookID)
		if !ppv.Verifies() {
			logger.Warn("PAYPAL webhook id missing; paypal notifications are accepted unverified")
		}
		verifiers = append(verifiers, ppv)
	}
	reconciler := webhooks.NewReconciler(backing, ledger, events, webhookSeen, verifiers...)

	deliverySvc := delivery.NewService(backing, backing, az, locker, events, cfg.SlipSecret)
	authSvc := auth.NewService(backing, cfg.JWTSecret, cfg.TokenTTL, revoker)

	rateLimiter := ratelim.NewRateLimiter(60, 10, 10*time.Minute)
	go rateLimiter.Run(ctx, time.Minute)

	router := httprouter.New()
	routes.RoutesWrapper(router, &routes.Deps{
		Logger:      logger,
		Auth:        middleware.NewAuthenticator(cfg.JWTSecret, revocations),
		RateLimiter: rateLimiter,
		Redis:       conn,
		Users:       auth.NewHandler(authSvc, cfg.Live()),
		Products:    products.NewHandler(products.NewService(productData, ledger, az)),
		Orders:      orders.NewHandler(orderSvc),
		Payments:    payments.NewHandler(paySvc),
		Webhooks:    webhooks.NewHandler(reconciler),
		Deliveries:  delivery.NewHandler(deliverySvc),
	})

	// apply middleware: CORS → security headers → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           securityHeaders(corsHandler),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      cfg.PaymentTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received; shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	closeStore(shutdownCtx)
	if conn != nil {
		_ = conn.Close()
	}
	logger.Info("server stopped cleanly")
}
