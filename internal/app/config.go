package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the configuration for both services, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files. Each
// binary reads the same file and picks its own section.
type Config struct {
	RedisURL  string `default:"redis://localhost:6379/0" usage:"Redis connection URL (ORDERS_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Inventory InventoryConfig
	Payment   PaymentConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Graceful  GracefulConfig
}

// InventoryConfig configures the inventory service.
type InventoryConfig struct {
	Addr string `default:"0.0.0.0:8000" usage:"Inventory server listen address"`
}

// PaymentConfig configures the payment service and its lifecycle coordinator.
type PaymentConfig struct {
	Addr         string `default:"0.0.0.0:8080" usage:"Payment server listen address"`
	InventoryURL string `default:"http://localhost:8000" usage:"Base URL of the inventory service" flag:"inventory-url"`

	// LookupTimeout bounds a single product lookup against the inventory
	// service.
	LookupTimeout time.Duration `default:"3s" usage:"Product lookup timeout" flag:"lookup-timeout"`

	// CompletionDelay is the minimum time between an order becoming pending
	// and its completion being attempted.
	CompletionDelay time.Duration `default:"5s" usage:"Delay before a pending order is completed" flag:"completion-delay"`

	Worker WorkerConfig
}

// WorkerConfig tunes the completion worker.
type WorkerConfig struct {
	PollInterval time.Duration `default:"500ms" usage:"Completion queue poll interval"`
	BatchSize    int           `default:"64" usage:"Max completions claimed per poll"`
	RetryDelay   time.Duration `default:"2s" usage:"Delay before a failed completion is retried"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/order-pipeline/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like REDIS_URL to the ORDERS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if v := os.Getenv("REDIS_URL"); v != "" && c.RedisURL == "redis://localhost:6379/0" {
		c.RedisURL = v
	}
}
