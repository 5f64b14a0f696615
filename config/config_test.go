package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSandboxDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_LIVE_SECRET_KEY", "sk_live_1")
	t.Setenv("PAYPAL_BASE_URL", "")
	t.Setenv("PAYMENT_TIMEOUT", "bogus")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.False(t, cfg.Live())
	assert.Equal(t, "sk_test_1", cfg.Stripe.SecretKey)
	assert.Equal(t, paypalSandboxBase, cfg.PayPal.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.PaymentTimeout)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, cfg.JWTSecret, cfg.SlipSecret)
}

func TestLoadProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, _, err := Load()
	assert.Error(t, err, "production needs a real secret")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STRIPE_LIVE_SECRET_KEY", "sk_live_1")
	t.Setenv("PAYPAL_BASE_URL", "")
	t.Setenv("TOKEN_TTL", "2h")
	cfg, _, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Live())
	assert.Equal(t, "sk_live_1", cfg.Stripe.SecretKey)
	assert.Equal(t, paypalLiveBase, cfg.PayPal.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}
