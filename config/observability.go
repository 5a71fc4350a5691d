package config

import (
	"net"
	"strings"
	"time"
)

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

// Sanitize is a no-op kept for symmetry with the other sections.
func (c *MetricsConfig) Sanitize() {}

// DefaultDevAPISecret signs dev backend tokens when DEVAPI_SECRET is unset.
const DefaultDevAPISecret = "coursedesk-dev-secret"

// DevAPIConfig controls the in-process course backend used for development.
type DevAPIConfig struct {
	Enabled  bool          `env:"ENABLED"   envDefault:"false"`
	Addr     string        `env:"ADDR"      envDefault:"127.0.0.1:8081"`
	Secret   string        `env:"SECRET"    envDefault:"coursedesk-dev-secret"`
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"2h"`
}

// Sanitize applies guardrails to dev backend configuration values.
func (c *DevAPIConfig) Sanitize() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8081"
	}
	if strings.TrimSpace(c.Secret) == "" {
		c.Secret = DefaultDevAPISecret
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 2 * time.Hour
	}
}

// URL returns the base URL clients use to reach the dev backend.
func (c DevAPIConfig) URL() string {
	host, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return "http://" + c.Addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
