package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the terminal client configuration, read from
// $HOME/.config/coursedesk/coursedesk.yaml and COURSEDESK_* variables.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig points at the course backend.
type ServerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIPrefix    string        `mapstructure:"api_prefix"`
	Timeout      time.Duration `mapstructure:"timeout"`
	IdentityExpr string        `mapstructure:"identity_expr"`
	TokenExpr    string        `mapstructure:"token_expr"`
}

// SessionConfig controls where sessions are kept. Each profile holds one
// session in the shared file.
type SessionConfig struct {
	File         string        `mapstructure:"file"`
	Profile      string        `mapstructure:"profile"`
	TTL          time.Duration `mapstructure:"ttl"`
	CodeCooldown time.Duration `mapstructure:"code_cooldown"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads cfgFile (or the default search path) into v and decodes it.
// A missing config file is not an error.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("coursedesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coursedesk")
	}

	v.SetEnvPrefix("COURSEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://127.0.0.1:8081")
	v.SetDefault("server.api_prefix", "/api")
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.identity_expr", "")
	v.SetDefault("server.token_expr", "")

	v.SetDefault("session.file", defaultSessionFile())
	v.SetDefault("session.profile", "default")
	v.SetDefault("session.ttl", time.Duration(0))
	v.SetDefault("session.code_cooldown", time.Minute)

	v.SetDefault("output.colors", true)
	v.SetDefault("logging.level", "warn")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "coursedesk-sessions.json"
	}
	return filepath.Join(dir, "coursedesk", "sessions.json")
}

func validate(cfg *Config) error {
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	cfg.Session.Profile = strings.TrimSpace(cfg.Session.Profile)

	var errs []error
	if cfg.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	}
	if cfg.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server.timeout must be positive"))
	}
	if cfg.Session.Profile == "" {
		errs = append(errs, errors.New("session.profile is required"))
	}
	if cfg.Session.File == "" {
		errs = append(errs, errors.New("session.file is required"))
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	return errors.Join(errs...)
}
