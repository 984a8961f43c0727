package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/diagnosis-backend/internal/platform/lock"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type SessionLockerConfig struct {
	Addr string
	// TTL bounds how long a crashed holder can keep a session locked.
	TTL      time.Duration
	Wait     time.Duration
	Interval time.Duration
}

// SessionLocker is a lock.Locker backed by SET NX PX with a token-checked
// release, so one instance cannot free a lock another instance holds.
type SessionLocker struct {
	log      *logger.Logger
	rdb      goredis.UniversalClient
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
	owned    bool
}

var _ lock.Locker = (*SessionLocker)(nil)

func NewSessionLocker(log *logger.Logger, cfg SessionLockerConfig) (*SessionLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l := NewSessionLockerFromClient(log, rdb, cfg)
	l.owned = true
	return l, nil
}

// NewSessionLockerFromClient wraps an existing client; Close leaves it open.
func NewSessionLockerFromClient(log *logger.Logger, rdb goredis.UniversalClient, cfg SessionLockerConfig) *SessionLocker {
	if log == nil {
		log = logger.Nop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	wait := cfg.Wait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	return &SessionLocker{
		log:      log.With("service", "RedisSessionLocker"),
		rdb:      rdb,
		ttl:      ttl,
		wait:     wait,
		interval: interval,
	}
}

func (l *SessionLocker) Backend() string { return "redis" }

// Client exposes the underlying client for health checks and metrics.
func (l *SessionLocker) Client() goredis.UniversalClient { return l.rdb }

func (l *SessionLocker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis session locker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	token := uuid.NewString()
	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, lock.ErrTimeout
		case <-ticker.C:
		}
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		// The caller's ctx may already be canceled; release on a short detached budget.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		if n == 0 {
			l.log.Warn("session lock expired before release", "key", key)
		}
		return nil
	}, nil
}

func (l *SessionLocker) Close() error {
	if l == nil || l.rdb == nil || !l.owned {
		return nil
	}
	return l.rdb.Close()
}
