package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - backend.go: course backend connection
//   - session.go: session store and role aliases
//   - database.go: PostgreSQL and Redis
//   - http.go: HTTP server configuration
//   - observability.go: metrics and the dev backend
type AppConfig struct {
	// IsDev controls development mode behavior (templates from disk, no static caching).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Course backend configuration
	Backend BackendConfig `envPrefix:"BACKEND_"`

	// Session storage configuration
	Session SessionConfig `envPrefix:"SESSION_"`

	// Role alias configuration
	Roles RoleConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// In-process course backend for development
	DevAPI DevAPIConfig `envPrefix:"DEVAPI_"`

	// Observability configuration
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Session.Sanitize()
	c.DevAPI.Sanitize()
	c.Backend.Sanitize()
	c.Metrics.Sanitize()

	// The dev backend stands in for the course backend when none is configured.
	if c.Backend.BaseURL == "" && c.DevAPI.Enabled {
		c.Backend.BaseURL = c.DevAPI.URL()
	}

	c.detectDevMode()
}

// Validate reports configuration that cannot work at runtime.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL is required unless DEVAPI_ENABLED=true"))
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DevAPI.Enabled && !c.IsDev && c.DevAPI.Secret == DefaultDevAPISecret {
		errs = append(errs, errors.New("DEVAPI_SECRET must be changed outside dev mode"))
	}
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// NeedsPostgres reports whether the configured session store uses PostgreSQL.
func (c *AppConfig) NeedsPostgres() bool { return c.Session.Store == StoreKindPostgres }

// NeedsRedis reports whether the configured session store uses Redis.
func (c *AppConfig) NeedsRedis() bool { return c.Session.Store == StoreKindRedis }
