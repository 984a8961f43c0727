package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/diagnosis-backend/internal/clients/redis"
	"github.com/yungbote/diagnosis-backend/internal/platform/lock"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type Clients struct {
	Locker lock.Locker
	// Redis is nil when REDIS_ADDR is unset.
	Redis goredis.UniversalClient

	sessionLocker *redis.SessionLocker
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info("REDIS_ADDR not set, using in-process session locks")
		return Clients{Locker: lock.NewLocal(cfg.SessionLockWait)}, nil
	}
	sl, err := redis.NewSessionLocker(log, redis.SessionLockerConfig{
		Addr: cfg.RedisAddr,
		TTL:  cfg.SessionLockTTL,
		Wait: cfg.SessionLockWait,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init redis session locker: %w", err)
	}
	return Clients{Locker: sl, Redis: sl.Client(), sessionLocker: sl}, nil
}

func (c Clients) Close() error {
	if c.sessionLocker == nil {
		return nil
	}
	return c.sessionLocker.Close()
}
