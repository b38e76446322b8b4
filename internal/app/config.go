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
// environment variables (BRIDGE_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	FrontendBaseURL string `usage:"Storefront origin for checkout redirects (BRIDGE_FRONTEND_BASE_URL)" flag:"frontend-base-url"`
	Currency        string `default:"EGP" usage:"Checkout currency code"`
	ShippingFee     string `default:"0" usage:"Flat shipping fee added to every order" flag:"shipping-fee"`

	Store     StoreConfig
	Payment   PaymentConfig
	Session   SessionConfig
	Rates     RatesConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StoreConfig points at the commerce backend's admin API.
type StoreConfig struct {
	Domain      string `usage:"Commerce store domain, e.g. example.myshopify.com"`
	AccessToken string `usage:"Admin API access token" flag:"access-token"`
}

// PaymentConfig points at the payment gateway.
type PaymentConfig struct {
	BaseURL    string `default:"https://accept.paymob.com/api" usage:"Gateway API base URL" flag:"base-url"`
	APIKey     string `usage:"Gateway API key" flag:"api-key"`
	HMACSecret string `usage:"Webhook HMAC secret" flag:"hmac-secret"`

	CardIntegrationID   int64  `usage:"Card integration ID" flag:"card-integration-id"`
	CardTemplateID      string `usage:"Card iframe template ID" flag:"card-template-id"`
	WalletIntegrationID int64  `usage:"Mobile wallet integration ID" flag:"wallet-integration-id"`
	WalletTemplateID    string `usage:"Mobile wallet iframe template ID" flag:"wallet-template-id"`

	CODEnabled bool `default:"true" usage:"Allow cash-on-delivery submissions" flag:"cod-enabled"`
}

// SessionConfig controls the one-time checkout session store.
type SessionConfig struct {
	TTL      time.Duration `default:"15m" usage:"Session lifetime"`
	RedisURL string        `usage:"Redis URL; empty selects the in-process store" flag:"redis-url"`
}

// RatesConfig controls intake currency conversion.
type RatesConfig struct {
	Convert  bool          `default:"false" usage:"Convert intake prices to the checkout currency"`
	URL      string        `usage:"Exchange rate feed URL; empty selects the fixed rate"`
	Fixed    string        `default:"1" usage:"Fixed conversion rate, also the fallback for the feed"`
	CacheTTL time.Duration `default:"1h" usage:"Rate cache lifetime" flag:"cache-ttl"`
	Timeout  time.Duration `default:"5s" usage:"Rate feed request timeout"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests per window per client"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
	MaxAge  int      `default:"86400" usage:"Preflight cache lifetime in seconds" flag:"max-age"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BRIDGE",
		Files:     []string{"config.yaml", "/etc/checkout-bridge/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if _, err := decimal.NewFromString(cfg.ShippingFee); err != nil {
		return nil, errors.Wrap(err, "parse shipping fee")
	}
	if _, err := decimal.NewFromString(cfg.Rates.Fixed); err != nil {
		return nil, errors.Wrap(err, "parse fixed rate")
	}

	return &cfg, nil
}

// MissingKeys lists required configuration that is absent. A non-empty list
// does not prevent startup: cart intake and the checkout page still work,
// and submission reports the missing keys instead of failing obscurely
// against the external services.
func (c *Config) MissingKeys() []string {
	var missing []string
	if c.FrontendBaseURL == "" {
		missing = append(missing, "BRIDGE_FRONTEND_BASE_URL")
	}
	if c.Store.Domain == "" {
		missing = append(missing, "BRIDGE_STORE_DOMAIN")
	}
	if c.Store.AccessToken == "" {
		missing = append(missing, "BRIDGE_STORE_ACCESS_TOKEN")
	}
	if c.Payment.APIKey == "" {
		missing = append(missing, "BRIDGE_PAYMENT_API_KEY")
	}
	if c.Payment.HMACSecret == "" {
		missing = append(missing, "BRIDGE_PAYMENT_HMAC_SECRET")
	}
	return missing
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) onto the BRIDGE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Session.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Session.RedisURL = v
		}
	}
}
