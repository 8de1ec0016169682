package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/brandpulse/internal/clients"
)

// RunGuard keeps two runs of the same execution from overlapping. Acquire
// reports ok=false when the key is already held; release must be called once
// the run ends.
type RunGuard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// LocalGuard is an in-process in-flight set.
type LocalGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{inFlight: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[key]; held {
		return nil, false, nil
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, true, nil
}

// LockClient is the lease API of clients.ValkeyClient.
type LockClient interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key, token string) error
}

// ValkeyGuard extends the guard across collector replicas with a leased lock.
// The lease TTL bounds how long a crashed holder can block the group.
type ValkeyGuard struct {
	client LockClient
	ttl    time.Duration
	local  *LocalGuard
}

func NewValkeyGuard(client LockClient, ttl time.Duration) *ValkeyGuard {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ValkeyGuard{client: client, ttl: ttl, local: NewLocalGuard()}
}

func (g *ValkeyGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	releaseLocal, ok, _ := g.local.Acquire(ctx, key)
	if !ok {
		return nil, false, nil
	}

	token := uuid.NewString()
	err := g.client.AcquireLock(ctx, key, token, g.ttl)
	if errors.Is(err, clients.ErrLockNotAcquired) {
		releaseLocal()
		return nil, false, nil
	}
	if err != nil {
		// the local marker still protects this process
		return releaseLocal, true, err
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := g.client.ReleaseLock(releaseCtx, key, token); err != nil {
			slog.Warn("[RunGuard] Failed to release lock",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		releaseLocal()
	}, true, nil
}
