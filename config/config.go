package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const devJWTSecret = "dev-only-insecure-jwt-secret"

type Config struct {
	// Server configuration
	Port          string
	Environment   string
	DataDir       string
	PublicBaseURL string

	// Session configuration
	JWTSecret  string
	SessionTTL time.Duration

	// Mercado Pago configuration
	MercadoPagoAccessToken   string
	MercadoPagoPublicKey     string
	MercadoPagoWebhookSecret string
	MercadoPagoBaseURL       string
	WebhookSkipSignature     bool
	GatewayTimeout           time.Duration

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Pricing
	PrecoIntegral   decimal.Decimal
	PrecoSubsidiado decimal.Decimal

	// Uploads
	UploadsDir    string
	MaxAvatarSize int64

	// Rate limiting
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := &Config{
		// Server
		Port:          getEnv("PORT", "8090"),
		Environment:   getEnv("NODE_ENV", getEnv("ENVIRONMENT", "development")),
		DataDir:       DataDirFromURL(getEnv("DATABASE_URL", "")),
		PublicBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8090"), "/"),

		// Session
		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvAsDuration("SESSION_TTL", "168h"),

		// Mercado Pago
		MercadoPagoAccessToken:   getEnv("MERCADO_PAGO_ACCESS_TOKEN", ""),
		MercadoPagoPublicKey:     getEnv("NEXT_PUBLIC_MERCADO_PAGO_PUBLIC_KEY", ""),
		MercadoPagoWebhookSecret: getEnv("MERCADO_PAGO_WEBHOOK_SECRET", ""),
		MercadoPagoBaseURL:       strings.TrimRight(getEnv("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com"), "/"),
		WebhookSkipSignature:     getEnvAsBool("MERCADO_PAGO_WEBHOOK_SKIP_SIGNATURE", false),
		GatewayTimeout:           getEnvAsDuration("MERCADO_PAGO_TIMEOUT", "10s"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ru-ticket-server"),

		// Pricing
		PrecoIntegral:   getEnvAsDecimal("PRECO_TICKET", "10.00"),
		PrecoSubsidiado: getEnvAsDecimal("PRECO_TICKET_SUBSIDIADO", "2.00"),

		// Uploads
		UploadsDir:    getEnv("UPLOADS_DIR", "uploads"),
		MaxAvatarSize: int64(getEnvAsInt("MAX_AVATAR_BYTES", 2<<20)),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		log.Println("WARNING: JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg
}

// IsProduction reports whether the app runs with production semantics
// (secure cookies, no error details in responses).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errMissing("JWT_SECRET")
	}
	if !c.WebhookSkipSignature && c.MercadoPagoWebhookSecret == "" {
		return errMissing("MERCADO_PAGO_WEBHOOK_SECRET (or set MERCADO_PAGO_WEBHOOK_SKIP_SIGNATURE=true)")
	}
	if c.PrecoIntegral.IsNegative() || c.PrecoSubsidiado.IsNegative() {
		return configError("ticket prices must not be negative")
	}
	return nil
}

// DataDirFromURL maps DATABASE_URL onto the PocketBase data directory.
// Accepted forms: sqlite://path/data.db, file:path/data.db, or a directory.
func DataDirFromURL(raw string) string {
	if raw == "" {
		return "pb_data"
	}

	p := raw
	for _, prefix := range []string{"sqlite://", "sqlite3://", "file://", "file:"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}

	if filepath.Ext(p) == ".db" {
		return filepath.Dir(p)
	}
	return p
}

type configError string

func (e configError) Error() string { return "config: " + string(e) }

func errMissing(key string) error {
	return configError("missing required setting " + key)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value.Round(2)
	}
	return decimal.RequireFromString(defaultValue)
}
