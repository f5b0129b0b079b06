package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete server configuration, loadable from environment
// variables (CART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL URL serving the catalog; empty serves the built-in catalog" flag:"database-url"`
	GzipLevel   int    `default:"5" usage:"Response gzip level (1-9, 0 disables)" flag:"gzip-level"`
	Session     SessionConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Health      HealthConfig
	Graceful    GracefulConfig
}

// SessionConfig controls cart session lifetime.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle time after which a cart session expires (0 keeps sessions forever)"`
	SweepInterval time.Duration `default:"0s" usage:"How often expired sessions are evicted (0 means TTL/2)" flag:"sweep-interval"`
	MaxSessions   int           `default:"10000" usage:"Maximum live sessions (0 is unlimited)" flag:"max-sessions"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window (0 disables)"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// HealthConfig controls the background probe checks.
type HealthConfig struct {
	Interval      time.Duration `default:"10s" usage:"Interval between health check runs"`
	MaxGoroutines int           `default:"10000" usage:"Goroutine count above which liveness fails" flag:"max-goroutines"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and command line flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "CART",
		Files:     []string{"config.yaml", "/etc/cart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is empty")
	case c.Session.TTL < 0:
		return errors.Errorf("session ttl %s is negative", c.Session.TTL)
	case c.Session.SweepInterval < 0:
		return errors.Errorf("session sweep interval %s is negative", c.Session.SweepInterval)
	case c.Session.MaxSessions < 0:
		return errors.Errorf("max sessions %d is negative", c.Session.MaxSessions)
	case c.GzipLevel < 0 || c.GzipLevel > 9:
		return errors.Errorf("gzip level %d out of range [0,9]", c.GzipLevel)
	case c.Health.Interval <= 0:
		return errors.Errorf("health interval %s must be positive", c.Health.Interval)
	}
	return nil
}
