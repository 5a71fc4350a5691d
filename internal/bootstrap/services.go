package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/adapters/authroles"
	"github.com/coursedesk/coursedesk/internal/adapters/courseapi"
	"github.com/coursedesk/coursedesk/internal/gateway"
	httpx "github.com/coursedesk/coursedesk/internal/http"
	"github.com/coursedesk/coursedesk/internal/ports"
	"github.com/coursedesk/coursedesk/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions *service.SessionService
	Auth     *service.AuthService
	Screens  *service.ScreenService
	Gateway  *gateway.Client
	Bus      *gateway.Bus
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Repo   ports.SessionRepository
	// HTTPClient overrides the transport used for the course backend (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewServices wires the session store, gateway and flows together. Every
// Unauthorized event published by the gateway is logged.
func NewServices(deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("services: config is required")
	}
	if deps.Repo == nil {
		return ServiceContainer{}, errors.New("services: session repository is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := service.NewSessionService(service.SessionServiceOptions{Repo: deps.Repo, Logger: logger})
	bus := gateway.NewBus()
	bus.Subscribe(httpx.LogUnauthorized(logger))

	client, err := gateway.New(gateway.Options{
		BaseURL:    cfg.Backend.BaseURL,
		APIPrefix:  cfg.Backend.APIPrefix,
		Timeout:    cfg.Backend.Timeout,
		HTTPClient: deps.HTTPClient,
		Sessions:   sessions,
		Bus:        bus,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create gateway: %w", err)
	}

	extractor, err := gateway.NewExtractor(cfg.Backend.IdentityExpr, cfg.Backend.TokenExpr)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("identity expression: %w", err)
	}
	backend, err := courseapi.New(courseapi.Options{
		Client:    client,
		Extractor: extractor,
		Roles:     authroles.NewStaticRoleMapper(cfg.Roles.Aliases),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create course backend: %w", err)
	}

	return ServiceContainer{
		Sessions: sessions,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Backend:    backend,
			Sessions:   sessions,
			Cooldown:   service.NewCodeCooldown(cfg.Session.CodeCooldown),
			SessionTTL: cfg.Session.TTL,
			Logger:     logger,
		}),
		Screens: service.NewScreenService(service.ScreenServiceOptions{Data: client, Logger: logger}),
		Gateway: client,
		Bus:     bus,
	}, nil
}
