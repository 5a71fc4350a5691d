package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
	httpx "github.com/coursedesk/coursedesk/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPHandler builds the router and wraps it with the standard middleware.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	routes := nav.DefaultRouteMap()
	if err := routes.Validate(); err != nil {
		return nil, fmt.Errorf("route map: %w", err)
	}

	tfs, err := httpx.TemplateFS(appCfg.IsDev)
	if err != nil {
		return nil, fmt.Errorf("template fs: %w", err)
	}
	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{TemplateFS: tfs, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	var metricsHandler http.Handler
	if appCfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Sessions: cfg.Services.Sessions,
		Auth:     cfg.Services.Auth,
		Screens:  cfg.Services.Screens,
		Events:   cfg.Services.Bus,
		Routes:   routes,
		Renderer: renderer,
		Cookie: httpx.CookieConfig{
			Name:   appCfg.Session.CookieName,
			Domain: appCfg.HTTP.CookieDomain,
			MaxAge: appCfg.Session.TTL,
		},
		CSRF:    appCfg.HTTP.CSRFEnabled,
		Metrics: metricsHandler,
		IsDev:   appCfg.IsDev,
		Logger:  logger,
	})

	// Order: Recover -> Logging -> Metrics -> Compression -> Router
	var compression *httpx.CompressionConfig
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
		compression = &httpx.CompressionConfig{Level: appCfg.HTTP.CompressionLevel, Logger: logger}
	}
	return httpx.Chain(router, logger, compression), nil
}

// StartHTTPServer binds the listener and serves in the background.
// Serve errors are sent to errCh.
func StartHTTPServer(cfg *HTTPServerConfig, errCh chan<- error) (*http.Server, error) {
	handler, err := BuildHTTPHandler(cfg)
	if err != nil {
		return nil, err
	}
	return startServer(cfg.Logger, "HTTP server", handler, cfg.Config.HTTP.Addr, errCh)
}

func startServer(
	logger *slog.Logger,
	name string,
	handler http.Handler,
	addr string,
	errCh chan<- error,
) (*http.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	go func() {
		logger.Info("starting "+name, "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(name+" failed", "error", err)
			if errCh != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}
	}()
	return server, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Servers []*http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServers gracefully shuts down every server, in order.
func ShutdownHTTPServers(cfg ShutdownConfig) error {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range cfg.Servers {
		if srv == nil {
			continue
		}
		if cfg.Logger != nil {
			cfg.Logger.Info("shutting down server", "addr", srv.Addr)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	if cfg.Logger != nil && len(errs) == 0 {
		cfg.Logger.Info("HTTP servers stopped")
	}
	return errors.Join(errs...)
}
