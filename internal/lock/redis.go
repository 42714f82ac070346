package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultTTL bounds how long a crashed holder can block an account.
	DefaultTTL = 10 * time.Second

	keyPrefix     = "ledger:account:"
	lockTries     = 32
	retryDelay    = 100 * time.Millisecond
	unlockTimeout = 5 * time.Second
)

// RedisLocker serializes account mutations across processes with redsync.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts []redsync.Option
	log  zerolog.Logger
}

// NewRedisLocker creates a RedisLocker on top of client. A non-positive ttl
// selects DefaultTTL.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		rs: redsync.New(goredis.NewPool(client)),
		opts: []redsync.Option{
			redsync.WithExpiry(ttl),
			redsync.WithTries(lockTries),
			redsync.WithRetryDelay(retryDelay),
		},
		log: log,
	}
}

// Lock implements ledger.Locker.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (ledger.Unlock, error) {
	keys = normalize(keys)
	held := make([]*redsync.Mutex, 0, len(keys))

	for _, k := range keys {
		m := l.rs.NewMutex(keyPrefix+k, l.opts...)
		if err := m.LockContext(ctx); err != nil {
			l.release(held)
			return nil, fmt.Errorf("RedisLocker.Lock: %s: %w", k, err)
		}
		held = append(held, m)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held) })
	}, nil
}

func (l *RedisLocker) release(held []*redsync.Mutex) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()

	for i := len(held) - 1; i >= 0; i-- {
		ok, err := held[i].UnlockContext(ctx)
		if err != nil || !ok {
			l.log.Warn().
				Err(err).
				Str("lock", held[i].Name()).
				Msg("Failed to release account lock")
		}
	}
}

var _ ledger.Locker = (*RedisLocker)(nil)
