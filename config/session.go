package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreKind selects the session repository.
type StoreKind string

const (
	// StoreKindRedis keeps sessions in Redis with a TTL.
	StoreKindRedis StoreKind = "redis"
	// StoreKindPostgres keeps sessions in the sessions table.
	StoreKindPostgres StoreKind = "postgres"
	// StoreKindMemory keeps sessions in process memory (single instance, dev).
	StoreKindMemory StoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreKind.
func (k *StoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "postgres", "memory":
		*k = StoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreKind: %q (valid options: redis, postgres, memory)", v)
	}
}

// SessionConfig controls where sessions live and how long they last.
type SessionConfig struct {
	Store StoreKind `env:"STORE" envDefault:"redis"`

	// TTL is an optional local retention limit for new sessions. The default 0
	// keeps a session until logout or a 401 from the course backend.
	TTL time.Duration `env:"TTL" envDefault:"0s"`

	// CookieName is the browser cookie carrying the session id.
	CookieName string `env:"COOKIE_NAME" envDefault:"session_id"`

	// RedisPrefix namespaces session keys in Redis.
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"coursedesk:session:"`

	// CodeCooldown is the minimum interval between verification codes per phone.
	CodeCooldown time.Duration `env:"CODE_COOLDOWN" envDefault:"60s"`

	// ReapInterval is how often expired rows are deleted from the PostgreSQL store.
	// 0 disables the sweeper.
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"10m"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.Store == "" {
		s.Store = StoreKindRedis
	}
	if s.TTL < 0 {
		s.TTL = 0
	}
	if strings.TrimSpace(s.CookieName) == "" {
		s.CookieName = "session_id"
	}
	if s.CodeCooldown <= 0 {
		s.CodeCooldown = 60 * time.Second
	}
	if s.ReapInterval < 0 {
		s.ReapInterval = 0
	}
}

// RoleConfig extends the built-in backend role alias table.
type RoleConfig struct {
	// Aliases maps raw backend roles to teacher, officer or student,
	// e.g. ROLE_ALIASES="lecturer:teacher,dean:officer".
	Aliases map[string]string `env:"ROLE_ALIASES" envKeyValSeparator:":"`
}
