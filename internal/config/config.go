package config

import (
	"fmt"

	pkgconfig "github.com/stitchkart/stitchkart/pkg/config"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"stitchkart"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"stitchkart_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (cart storage)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CartTTLHours  int    `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Pricing. The tax rate is in basis points; amounts are minor units.
	Currency              string `env:"CURRENCY" envDefault:"INR"`
	TaxRateBP             int64  `env:"TAX_RATE_BP" envDefault:"1800"`
	FreeShippingThreshold int64  `env:"FREE_SHIPPING_THRESHOLD" envDefault:"100000"`
	ShippingFee           int64  `env:"SHIPPING_FEE" envDefault:"5000"`

	// Tracing
	OTLPEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampling  float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`

	// Debug endpoints
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.TaxRateBP < 0 || c.TaxRateBP > 10000 {
		return fmt.Errorf("tax rate must be between 0 and 10000 basis points, got %d", c.TaxRateBP)
	}
	if c.FreeShippingThreshold < 0 {
		return fmt.Errorf("free shipping threshold must not be negative, got %d", c.FreeShippingThreshold)
	}
	if c.ShippingFee < 0 {
		return fmt.Errorf("shipping fee must not be negative, got %d", c.ShippingFee)
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("cart TTL must be at least 1 hour, got %d", c.CartTTLHours)
	}
	return nil
}
