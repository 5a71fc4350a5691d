package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/adapters/memory"
	"github.com/coursedesk/coursedesk/internal/adapters/postgres"
	redisstore "github.com/coursedesk/coursedesk/internal/adapters/redis"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// SessionBackends holds the connections a session repository may use.
type SessionBackends struct {
	DB    *pgxpool.Pool
	Redis redis.UniversalClient
}

// SessionRepository selects the repository for cfg.Store.
//
//nolint:ireturn // callers only need the port.
func SessionRepository(cfg config.SessionConfig, b SessionBackends) (ports.SessionRepository, error) {
	switch cfg.Store {
	case config.StoreKindRedis:
		if b.Redis == nil {
			return nil, errors.New("session store redis: client not connected")
		}
		return redisstore.NewSessionStoreWithPrefix(b.Redis, cfg.RedisPrefix), nil
	case config.StoreKindPostgres:
		if b.DB == nil {
			return nil, errors.New("session store postgres: database not connected")
		}
		return postgres.NewSessionRepo(b.DB), nil
	case config.StoreKindMemory:
		return memory.NewSessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
