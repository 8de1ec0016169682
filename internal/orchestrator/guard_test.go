package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGuard(t *testing.T) {
	g := NewLocalGuard()

	release, ok, err := g.Acquire(context.Background(), "group:g1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = g.Acquire(context.Background(), "group:g1")
	assert.False(t, ok, "second acquire must fail while held")

	_, ok, _ = g.Acquire(context.Background(), "group:g2")
	assert.True(t, ok, "other keys are independent")

	release()
	release()
	_, ok, _ = g.Acquire(context.Background(), "group:g1")
	assert.True(t, ok)
}

func TestLocalGuard_ConcurrentAcquire(t *testing.T) {
	g := NewLocalGuard()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := g.Acquire(context.Background(), "k"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestGuards_SameGroupIDAcrossBrands(t *testing.T) {
	acmeMain := models.Execution{BrandID: "acme", GroupID: "main"}
	globexMain := models.Execution{BrandID: "globex", GroupID: "main"}
	require.NotEqual(t, acmeMain.GuardKey(), globexMain.GuardKey())

	guards := map[string]RunGuard{
		"local":  NewLocalGuard(),
		"valkey": NewValkeyGuard(&fakeLocks{held: map[string]string{}}, time.Minute),
	}
	for name, g := range guards {
		t.Run(name, func(t *testing.T) {
			releaseA, ok, err := g.Acquire(context.Background(), acmeMain.GuardKey())
			require.NoError(t, err)
			require.True(t, ok)
			defer releaseA()

			releaseB, ok, err := g.Acquire(context.Background(), globexMain.GuardKey())
			require.NoError(t, err)
			assert.True(t, ok, "another brand's group with the same id must not be blocked")
			if ok {
				releaseB()
			}

			_, ok, _ = g.Acquire(context.Background(), acmeMain.GuardKey())
			assert.False(t, ok)
		})
	}
}

type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func (f *fakeLocks) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.held[key]; ok {
		return clients.ErrLockNotAcquired
	}
	f.held[key] = token
	return nil
}

func (f *fakeLocks) ReleaseLock(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}

func TestValkeyGuard(t *testing.T) {
	locks := &fakeLocks{held: map[string]string{"group:other-replica": "x"}}
	g := NewValkeyGuard(locks, time.Minute)

	_, ok, err := g.Acquire(context.Background(), "group:other-replica")
	require.NoError(t, err)
	assert.False(t, ok, "held by another replica")

	release, ok, err := g.Acquire(context.Background(), "group:g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, locks.held, "group:g1")

	release()
	assert.NotContains(t, locks.held, "group:g1")
	assert.Equal(t, []string{"group:g1"}, locks.released)

	// the local half is released too
	_, ok, _ = g.Acquire(context.Background(), "group:other-replica")
	assert.False(t, ok)
	_, ok, _ = g.Acquire(context.Background(), "group:g1")
	assert.True(t, ok)
}

func TestValkeyGuard_DegradesToLocal(t *testing.T) {
	locks := &fakeLocks{held: map[string]string{}, err: errors.New("connection refused")}
	g := NewValkeyGuard(locks, time.Minute)

	release, ok, err := g.Acquire(context.Background(), "group:g1")
	assert.Error(t, err)
	require.True(t, ok)

	_, ok, _ = g.Acquire(context.Background(), "group:g1")
	assert.False(t, ok, "local marker still held")

	release()
	_, ok, _ = g.Acquire(context.Background(), "group:g1")
	assert.True(t, ok)
}
