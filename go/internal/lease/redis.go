package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotHeld is returned by Release when the lease expired or was never taken.
var ErrNotHeld = errors.New("lease not held")

type Config struct {
	Key    string
	Expiry time.Duration
}

func DefaultConfig() Config {
	return Config{
		Key:    "tradeblock:reaper",
		Expiry: 5 * time.Minute,
	}
}

// RedisLease is a single-holder lease backed by a redsync mutex. Instances
// sharing a Redis and a key take turns; a holder that dies loses the lease
// after Expiry.
type RedisLease struct {
	rs  *redsync.Redsync
	cfg Config

	mu    sync.Mutex
	mutex *redsync.Mutex
}

func NewRedisLease(client redis.UniversalClient, cfg Config) *RedisLease {
	if cfg.Key == "" {
		cfg.Key = DefaultConfig().Key
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultConfig().Expiry
	}
	return &RedisLease{
		rs:  redsync.New(goredis.NewPool(client)),
		cfg: cfg,
	}
}

// TryAcquire takes the lease without waiting. It returns false when another
// holder has it.
func (l *RedisLease) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex != nil {
		return false, nil
	}

	mutex := l.rs.NewMutex(
		l.cfg.Key,
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			log.Debug().Str("key", l.cfg.Key).Msg("lease held elsewhere")
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.cfg.Key, err)
	}

	l.mutex = mutex
	log.Debug().Str("key", l.cfg.Key).Dur("expiry", l.cfg.Expiry).Msg("lease acquired")
	return true, nil
}

// Release gives the lease back.
func (l *RedisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex == nil {
		return ErrNotHeld
	}
	mutex := l.mutex
	l.mutex = nil

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.cfg.Key, err)
	}
	if !ok {
		return ErrNotHeld
	}
	return nil
}

// Open connects to Redis at addr and verifies the connection.
func Open(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return client, nil
}
