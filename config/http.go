package config

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for session and CSRF cookies.
	// Leave empty to use the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CSRFEnabled turns on double-submit CSRF protection for form posts.
	CSRFEnabled bool `env:"HTTP_CSRF_ENABLED" envDefault:"true"`

	// CompressionEnabled enables gzip compression for text-based assets.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
}

// Validate rejects cookie domains browsers would refuse, such as bare public suffixes.
func (h *HTTPConfig) Validate() error {
	d := h.CookieDomain
	if d == "" || d == "localhost" {
		return nil
	}
	if strings.ContainsAny(d, ":/ ") {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q must be a bare host name", d)
	}
	suffix, _ := publicsuffix.PublicSuffix(d)
	if suffix == d {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is a public suffix", d)
	}
	return nil
}
