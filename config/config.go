// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Stripe struct {
	SecretKey     string
	WebhookSecret string
}

type PayPal struct {
	ClientID  string
	Secret    string
	BaseURL   string
	WebhookID string
}

type Config struct {
	Env            string
	Port           string
	LogLevel       string
	StoreBackend   string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	JWTSecret      []byte
	TokenTTL       time.Duration
	SlipSecret     []byte
	ClientURL      string
	PaymentTimeout time.Duration
	Stripe         Stripe
	PayPal         PayPal
}

// Live reports whether live payment credentials are in use.
func (c Config) Live() bool { return c.Env == "production" }

const (
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
	paypalLiveBase    = "https://api-m.paypal.com"
)

// Load reads .env when present, then the process environment. Payment
// credentials are picked from the live or sandbox set according to APP_ENV.
func Load() (Config, bool, error) {
	dotenv := godotenv.Load() == nil

	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		Port:           port(getenv("PORT", "8080")),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StoreBackend:   getenv("STORE", "mongo"),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "farmgate"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        atoi(os.Getenv("REDIS_DB"), 0),
		JWTSecret:      []byte(os.Getenv("JWT_SECRET")),
		TokenTTL:       duration(os.Getenv("TOKEN_TTL"), 15*24*time.Hour),
		SlipSecret:     []byte(os.Getenv("SLIP_SECRET")),
		ClientURL:      getenv("CLIENT_URL", "http://localhost:5173"),
		PaymentTimeout: duration(os.Getenv("PAYMENT_TIMEOUT"), 15*time.Second),
	}

	if cfg.Live() {
		cfg.Stripe = Stripe{
			SecretKey:     os.Getenv("STRIPE_LIVE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_LIVE_WEBHOOK_SECRET"),
		}
		cfg.PayPal = PayPal{
			ClientID:  os.Getenv("PAYPAL_LIVE_CLIENT_ID"),
			Secret:    os.Getenv("PAYPAL_LIVE_CLIENT_SECRET"),
			BaseURL:   paypalLiveBase,
			WebhookID: os.Getenv("PAYPAL_LIVE_WEBHOOK_ID"),
		}
	} else {
		cfg.Stripe = Stripe{
			SecretKey:     os.Getenv("STRIPE_TEST_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_TEST_WEBHOOK_SECRET"),
		}
		cfg.PayPal = PayPal{
			ClientID:  os.Getenv("PAYPAL_SANDBOX_CLIENT_ID"),
			Secret:    os.Getenv("PAYPAL_SANDBOX_CLIENT_SECRET"),
			BaseURL:   paypalSandboxBase,
			WebhookID: os.Getenv("PAYPAL_SANDBOX_WEBHOOK_ID"),
		}
	}
	if base := os.Getenv("PAYPAL_BASE_URL"); base != "" {
		cfg.PayPal.BaseURL = base
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.Live() {
			return cfg, dotenv, errors.New("config: JWT_SECRET is required in production")
		}
		cfg.JWTSecret = []byte("dev-only-secret")
	}
	if len(cfg.SlipSecret) == 0 {
		cfg.SlipSecret = cfg.JWTSecret
	}
	return cfg, dotenv, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func port(p string) string {
	if p[0] != ':' {
		return ":" + p
	}
	return p
}

func atoi(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
