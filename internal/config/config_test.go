package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Recovery.MaxPaymentRetries)
	assert.Equal(t, []int{1, 3, 7}, cfg.Recovery.RetryIntervals)
	assert.Equal(t, time.Duration(0), cfg.Stripe.SignatureTolerance)
	assert.Equal(t, "billing_notifications", cfg.Notifications.Topic)
}

func TestNewConfig_EnvAliases(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("MAX_PAYMENT_RETRIES", "4")
	t.Setenv("RETRY_INTERVALS", "1,2,5,9")
	t.Setenv("SUCCESS_URL", "https://portal.example.com/billing/success")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_abc", cfg.Stripe.WebhookSecret)
	assert.Equal(t, 4, cfg.Recovery.MaxPaymentRetries)
	assert.Equal(t, []int{1, 2, 5, 9}, cfg.Recovery.RetryIntervals)
	assert.Equal(t, "https://portal.example.com/billing/success", cfg.Stripe.SuccessURL)
}

func TestNewConfig_PrefixedEnvWins(t *testing.T) {
	t.Setenv("BILLINGCORE_STRIPE_WEBHOOK_SECRET", "whsec_prefixed")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_plain")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "whsec_prefixed", cfg.Stripe.WebhookSecret)
}

func TestNewConfig_RejectsShortBackoffTable(t *testing.T) {
	t.Setenv("MAX_PAYMENT_RETRIES", "4")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_intervals")
}

func TestRecoveryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RecoveryConfig
		wantErr bool
	}{
		{name: "default table", cfg: RecoveryConfig{MaxPaymentRetries: 3, RetryIntervals: []int{1, 3, 7}}},
		{name: "longer table than retries", cfg: RecoveryConfig{MaxPaymentRetries: 2, RetryIntervals: []int{1, 3, 7}}},
		{name: "retries disabled", cfg: RecoveryConfig{MaxPaymentRetries: 0}},
		{name: "missing entries", cfg: RecoveryConfig{MaxPaymentRetries: 3, RetryIntervals: []int{1, 3}}, wantErr: true},
		{name: "zero interval", cfg: RecoveryConfig{MaxPaymentRetries: 3, RetryIntervals: []int{1, 0, 7}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecoveryConfig_RetryDelay(t *testing.T) {
	cfg := GetDefaultConfig().Recovery

	delay, ok := cfg.RetryDelay(1)
	assert.True(t, ok)
	assert.Equal(t, 24*time.Hour, delay)

	delay, ok = cfg.RetryDelay(3)
	assert.True(t, ok)
	assert.Equal(t, 7*24*time.Hour, delay)

	_, ok = cfg.RetryDelay(4)
	assert.False(t, ok)

	_, ok = cfg.RetryDelay(0)
	assert.False(t, ok)
}

func TestPostgresConfig_GetURL(t *testing.T) {
	cfg := PostgresConfig{User: "billing", Password: "p@ss word", Host: "db", Port: 5432, DBName: "billingcore", SSLMode: "disable"}
	assert.Equal(t, "postgres://billing:p%40ss%20word@db:5432/billingcore?sslmode=disable", cfg.GetURL())
}
