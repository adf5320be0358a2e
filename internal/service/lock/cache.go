package lock

import (
	"context"
	"fmt"
	"time"

	"AlphaBot/pkg/cache"
	"AlphaBot/pkg/logger"

	"github.com/google/uuid"
)

// CacheLocker is a distributed lock on top of cache.Service TryLock (SETNX with TTL).
// The TTL bounds how long a crashed holder can block a key. Every acquisition stores its
// own token, so a holder whose lease ran out cannot release its successor's lock.
type CacheLocker struct {
	cache     cache.Service
	ttl       time.Duration
	retry     time.Duration
	keyPrefix string
	log       *logger.Logger
}

func NewCacheLocker(c cache.Service, ttl, retry time.Duration, log *logger.Logger) *CacheLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 20 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CacheLocker{cache: c, ttl: ttl, retry: retry, keyPrefix: "lock", log: log}
}

// Lock retries TryLock until it succeeds or ctx is done.
func (l *CacheLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := cache.GenerateKey(l.keyPrefix, key)
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.cache.TryLock(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// detached so a cancelled request still releases the key
				uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				released, err := l.cache.Unlock(uctx, lockKey, token)
				if err != nil {
					l.log.Warn("unlock failed", logger.String("key", lockKey), logger.Error(err))
					return
				}
				if !released {
					l.log.Warn("lock lease expired before unlock",
						logger.String("key", lockKey),
						logger.Duration("ttl", l.ttl),
					)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
