package config

import (
	"strings"
	"time"
)

const defaultBackendTimeout = 10 * time.Second

// BackendConfig describes the remote course backend.
type BackendConfig struct {
	// BaseURL is the scheme and host of the backend, e.g. "http://localhost:8081".
	BaseURL string `env:"BASE_URL"`

	// APIPrefix is prepended to every request path.
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`

	// Timeout bounds each outbound request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// IdentityExpr and TokenExpr are JMESPath expressions evaluated against
	// login envelopes. Empty selects the built-in defaults.
	IdentityExpr string `env:"IDENTITY_EXPR"`
	TokenExpr    string `env:"TOKEN_EXPR"`
}

// Sanitize trims values and restores the default timeout.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.Timeout <= 0 {
		b.Timeout = defaultBackendTimeout
	}
	if strings.TrimSpace(b.APIPrefix) == "" {
		b.APIPrefix = "/api"
	}
}
