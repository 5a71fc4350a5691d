package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/adapters/devapi"
)

// StartDevAPI serves the in-process course backend when enabled.
// It returns nil when the dev backend is disabled.
func StartDevAPI(cfg config.DevAPIConfig, logger *slog.Logger, errCh chan<- error) (*http.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv, err := devapi.New(devapi.Config{
		Secret:   cfg.Secret,
		TokenTTL: cfg.TokenTTL,
		Logger:   logger.With("component", "devapi"),
	})
	if err != nil {
		return nil, fmt.Errorf("create dev backend: %w", err)
	}
	logger.Warn("dev course backend enabled; verification codes are logged", "addr", cfg.Addr)
	return startServer(logger, "dev course backend", srv, cfg.Addr, errCh)
}
