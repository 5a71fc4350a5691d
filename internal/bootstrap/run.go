package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/ports"
	"github.com/coursedesk/coursedesk/internal/service"
)

// Infrastructure holds the connections opened for the configured session store.
type Infrastructure struct {
	DB    *pgxpool.Pool
	Redis redis.UniversalClient
}

// Close releases every open connection.
func (i *Infrastructure) Close(ctx context.Context, logger *slog.Logger) {
	if i.DB != nil {
		i.DB.Close()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil && logger != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
	}
}

// ConnectInfrastructure connects only what cfg.Session.Store needs and runs
// migrations when PostgreSQL is in use.
func ConnectInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	if cfg.NeedsPostgres() {
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				infra.Close(ctx, logger)
				return nil, err
			}
		} else if logger != nil {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	if cfg.NeedsRedis() {
		rdb, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			infra.Close(ctx, logger)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Redis = rdb
	}
	return infra, nil
}

// Run starts the web client (and the dev backend when enabled) and blocks
// until ctx is canceled, SIGINT/SIGTERM arrives, or a server fails.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := ConnectInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close(context.WithoutCancel(ctx), logger)

	repo, err := SessionRepository(cfg.Session, SessionBackends{DB: infra.DB, Redis: infra.Redis})
	if err != nil {
		return err
	}
	if err := startSessionReaper(ctx, cfg.Session, repo, logger); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	var servers []*http.Server
	shutdown := func() error {
		return ShutdownHTTPServers(ShutdownConfig{
			Context: context.WithoutCancel(ctx),
			Servers: servers,
			Logger:  logger,
		})
	}

	devSrv, err := StartDevAPI(cfg.DevAPI, logger, errCh)
	if err != nil {
		return err
	}
	if devSrv != nil {
		servers = append(servers, devSrv)
	}

	services, err := NewServices(ServiceDeps{Config: cfg, Repo: repo, Logger: logger})
	if err != nil {
		return errors.Join(err, shutdown())
	}
	httpSrv, err := StartHTTPServer(&HTTPServerConfig{Config: cfg, Services: services, Logger: logger}, errCh)
	if err != nil {
		return errors.Join(err, shutdown())
	}
	// The web client stops first so in-flight requests can still reach the dev backend.
	servers = append([]*http.Server{httpSrv}, servers...)

	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutdown signal received")
		return shutdown()
	case serveErr := <-errCh:
		return errors.Join(serveErr, shutdown())
	}
}

// startSessionReaper sweeps expired sessions in the background for stores
// that do not expire entries themselves. The loop ends with ctx.
func startSessionReaper(
	ctx context.Context,
	cfg config.SessionConfig,
	repo ports.SessionRepository,
	logger *slog.Logger,
) error {
	deleter, ok := repo.(service.ExpiredSessionDeleter)
	if !ok || cfg.ReapInterval <= 0 {
		return nil
	}
	reaper, err := service.NewSessionReaper(service.SessionReaperOptions{
		Repo:     deleter,
		Interval: cfg.ReapInterval,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create session reaper: %w", err)
	}
	go func() {
		if runErr := reaper.Run(ctx); runErr != nil {
			logger.WarnContext(ctx, "session reaper stopped", "error", runErr)
		}
	}()
	return nil
}
