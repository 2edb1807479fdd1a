package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Checkout     CheckoutConfig
	Invoice      InvoiceConfig
	Stripe       StripeConfig
	PaymentLinks PaymentLinksConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// CheckoutConfig tunes the checkout unit of work.
type CheckoutConfig struct {
	MaxAttempts        int  `default:"3" usage:"Transaction attempts on version or serialization conflicts" flag:"checkout-max-attempts"`
	CountDiscountUsage bool `default:"true" usage:"Increment discount used count on every redemption" flag:"count-discount-usage"`
	MaxListLimit       int  `default:"100" usage:"Upper bound for the admin order listing limit" flag:"max-list-limit"`
}

// InvoiceConfig controls invoice numbering.
type InvoiceConfig struct {
	Prefix     string `default:"INV" usage:"Invoice number prefix"`
	SeedOffset int64  `default:"5" usage:"Offset added to the invoice sequence" flag:"invoice-seed-offset"`
}

// StripeConfig enables Stripe Checkout payment links when APIKey is set.
type StripeConfig struct {
	APIKey     string `usage:"Stripe secret key (STOREFRONT_STRIPE_API_KEY)" flag:"stripe-api-key"`
	Currency   string `default:"usd" usage:"Checkout currency"`
	SuccessURL string `usage:"Redirect after a successful payment" flag:"stripe-success-url"`
	CancelURL  string `usage:"Redirect after a cancelled payment" flag:"stripe-cancel-url"`
}

// PaymentLinksConfig is the static link fallback used without Stripe.
type PaymentLinksConfig struct {
	BaseURL string `default:"http://localhost:8080/pay" usage:"Base URL of static payment links" flag:"payment-links-base-url"`
}

// RedisConfig enables idempotent checkout when Addr is set.
type RedisConfig struct {
	Addr           string        `usage:"Redis address (host:port)" flag:"redis-addr"`
	Password       string        `usage:"Redis password" flag:"redis-password"`
	DB             int           `default:"0" usage:"Redis database" flag:"redis-db"`
	IdempotencyTTL time.Duration `default:"24h" usage:"Retention of idempotent responses" flag:"idempotency-ttl"`
}

// KafkaConfig enables order events when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `usage:"Kafka bootstrap brokers" flag:"kafka-brokers"`
	Topic        string        `default:"storefront.orders" usage:"Order events topic" flag:"kafka-topic"`
	WriteTimeout time.Duration `default:"5s" usage:"Kafka write timeout" flag:"kafka-write-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.RateLimit.Max <= 0 {
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	}
	if c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
