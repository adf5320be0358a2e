package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AlphaBot/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func assertSerialises(t *testing.T, l locker) {
	t.Helper()
	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "bot-a")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxSeen)
}

func TestKeyedMutex_Serialises(t *testing.T) {
	km := NewKeyedMutex()
	assertSerialises(t, km)
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutex_KeysAreIndependent(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	assert.Equal(t, 0, km.Len())
}

func TestCacheLocker_Serialises(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	assertSerialises(t, NewCacheLocker(mc, time.Second, time.Millisecond, nil))
}

func TestCacheLocker_TimesOutWhileHeld(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	l := NewCacheLocker(mc, time.Second, time.Millisecond, nil)

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheLocker_ExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	l := NewCacheLocker(mc, 60*time.Millisecond, time.Millisecond, nil)

	unlockA, err := l.Lock(context.Background(), "bot-a")
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond) // A's lease runs out mid-command

	unlockB, err := l.Lock(context.Background(), "bot-a")
	require.NoError(t, err)
	unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "bot-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "B still holds the lock")

	unlockB()
	unlockC, err := l.Lock(context.Background(), "bot-a")
	require.NoError(t, err)
	unlockC()
}
