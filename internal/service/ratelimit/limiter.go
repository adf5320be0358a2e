package ratelimit

import (
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key gets Capacity tokens refilled at
// RefillPerSec. A zero Capacity disables limiting.
type Limiter struct {
	mu           sync.Mutex
	m            map[string]*bucket
	capacity     float64
	refillPerSec float64
	now          func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		m:            make(map[string]*bucket),
		capacity:     capacity,
		refillPerSec: refillPerSec,
		now:          time.Now,
	}
}

// Enabled reports whether the limiter actually limits.
func (l *Limiter) Enabled() bool { return l != nil && l.capacity > 0 }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillPerSec
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter is the time an empty bucket needs to earn one token, in whole seconds.
func (l *Limiter) RetryAfter() time.Duration {
	if !l.Enabled() || l.refillPerSec <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(1/l.refillPerSec)) * time.Second
}

// Sweep drops buckets that have been full for longer than idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	if !l.Enabled() {
		return 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.m {
		if now.Sub(b.last) < idle {
			continue
		}
		if b.tokens+now.Sub(b.last).Seconds()*l.refillPerSec >= l.capacity {
			delete(l.m, key)
			removed++
		}
	}
	return removed
}
