package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "pb_data", cfg.DataDir)
	assert.False(t, cfg.WebhookSkipSignature)
	assert.True(t, decimal.RequireFromString("2.00").Equal(cfg.PrecoSubsidiado))
	assert.True(t, decimal.RequireFromString("10.00").Equal(cfg.PrecoIntegral))
}

func TestLoadConfig_ProductionKeepsSecretEmpty(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Empty(t, cfg.JWTSecret)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MERCADO_PAGO_WEBHOOK_SECRET", "whsec")
	t.Setenv("MERCADO_PAGO_WEBHOOK_SKIP_SIGNATURE", "true")
	t.Setenv("PRECO_TICKET_SUBSIDIADO", "3.456")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("MERCADO_PAGO_BASE_URL", "http://gateway.local/")

	cfg := LoadConfig()

	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.WebhookSkipSignature)
	assert.Equal(t, "3.46", cfg.PrecoSubsidiado.StringFixed(2))
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "http://gateway.local", cfg.MercadoPagoBaseURL)
	require.NoError(t, cfg.Validate())
}

func TestValidate_WebhookSecretRequiredUnlessSkipped(t *testing.T) {
	cfg := &Config{JWTSecret: "x"}
	assert.Error(t, cfg.Validate())

	cfg.WebhookSkipSignature = true
	assert.NoError(t, cfg.Validate())

	cfg.WebhookSkipSignature = false
	cfg.MercadoPagoWebhookSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestDataDirFromURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "pb_data"},
		{"sqlite scheme", "sqlite://var/lib/ru/data.db", "var/lib/ru"},
		{"file scheme with params", "file:./pb_data/data.db?_pragma=busy_timeout(5000)", "pb_data"},
		{"plain directory", "/srv/ru_data", "/srv/ru_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DataDirFromURL(tt.raw))
		})
	}
}
