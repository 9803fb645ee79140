package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERFLOW_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERFLOW_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Tax       TaxConfig
	Payment   PaymentConfig
	Promo     PromoConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// TaxConfig controls the static tax resolver.
type TaxConfig struct {
	// DefaultRate applies when no state or country rate matches.
	DefaultRate string `default:"0.08" usage:"Fallback tax rate as a fraction" flag:"tax-default-rate"`
}

// Rate parses the configured default rate.
func (c TaxConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.DefaultRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse default tax rate")
	}
	return rate, nil
}

// PaymentConfig controls the simulated payment gateway.
type PaymentConfig struct {
	// AuthLimit declines charges above this amount. Empty disables the
	// limit.
	AuthLimit string `default:"" usage:"Decline charges above this amount" flag:"payment-auth-limit"`
}

// PromoConfig sizes the in-memory promotion code existence filter.
type PromoConfig struct {
	FilterCapacity uint    `default:"1000000" usage:"Expected number of promotion codes" flag:"promo-filter-capacity"`
	FilterFPRate   float64 `default:"0.001" usage:"Promotion filter false positive rate" flag:"promo-filter-fp-rate"`
}

// AuditConfig controls where audit events go.
type AuditConfig struct {
	// File appends events as JSON lines. Empty routes events to the
	// structured log instead.
	File string `default:"" usage:"Audit JSONL file path (empty = log)" flag:"audit-file"`
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERFLOW",
		Files:     []string{"config.yaml", "/etc/orderflow/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERFLOW_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's ORDERFLOW_-prefixed configuration.
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
