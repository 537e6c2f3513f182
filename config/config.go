package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity backend selection and credentials
//   - store.go: token and redirect-intent storage
//   - console.go: navigation targets and interactivity
//   - http.go: localhost dashboard server
//   - observability.go: logging and metrics
type AppConfig struct {
	// IsDev relaxes guardrails for local development (DEV=true).
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth          AuthConfig
	Store         StoreConfig
	Redis         RedisConfig `envPrefix:"REDIS_"`
	Console       ConsoleConfig
	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Store.Sanitize()
	c.Console.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot produce a working console.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Auth.Validate(c.IsDev); err != nil {
		errs = append(errs, err)
	}
	if err := c.Console.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Backend == StoreBackendRedis && len(c.Redis.ClusterNodes) == 0 && strings.TrimSpace(c.Redis.URI) == "" {
		errs = append(errs, errors.New("REDIS_URI is required when STORE_BACKEND=redis"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// LogValue keeps secrets out of startup logs.
func (c AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("auth_mode", string(c.Auth.Mode)),
		slog.String("store_backend", string(c.Store.Backend)),
		slog.String("login_path", c.Console.LoginPath),
		slog.String("landing_path", c.Console.LandingPath),
		slog.String("http_addr", c.HTTP.Addr),
		slog.Bool("metrics", c.Observability.Metrics.IsEnabled()),
		slog.Bool("dev", c.IsDev),
	)
}
