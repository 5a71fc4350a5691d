package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/adapters/devapi"
)

// startDevAPI serves the development backend on a random loopback port.
// Tokens are signed with the default dev secret, so a session from one run
// stays valid in the next.
func startDevAPI(logger *slog.Logger) (string, func(), error) {
	backend, err := devapi.New(devapi.Config{Secret: config.DefaultDevAPISecret, Logger: logger})
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen dev backend: %w", err)
	}
	srv := &http.Server{Handler: backend, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dev backend stopped", "error", err)
		}
	}()
	logger.Debug("dev backend listening", "addr", ln.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
