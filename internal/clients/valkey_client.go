package clients

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

var ErrLockNotAcquired = errors.New("lock already held")

const (
	VALKEY_SEEN_PREFIX = "seen:"
	VALKEY_LOCK_PREFIX = "lock:"
	VALKEY_SEEN_TTL    = 24 * time.Hour
)

// compare-and-delete so a holder whose lock expired cannot release someone
// else's lock
var releaseLockScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type ValkeyOptions struct {
	Address  string
	Password string
	TLS      bool
}

type ValkeyClient struct {
	Client valkey.Client
	opts   ValkeyOptions
	mu     sync.Mutex
}

func NewValkeyClient(ctx context.Context, opts ValkeyOptions) (*ValkeyClient, error) {
	client, err := connectValkey(ctx, opts)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", opts.Address))
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func connectValkey(ctx context.Context, opts ValkeyOptions) (valkey.Client, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(ctx, vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed",
			slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	if vc != nil && vc.Client != nil {
		vc.Client.Close()
	}
}

// MarkSeen records post keys for a platform. The set expires a day after the
// last write.
func (vc *ValkeyClient) MarkSeen(ctx context.Context, platform string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	setKey := SeenKey(platform)
	completed := []valkey.Completed{
		vc.Client.B().Sadd().Key(setKey).Member(keys...).Build(),
		vc.Client.B().Expire().Key(setKey).Seconds(int64(VALKEY_SEEN_TTL.Seconds())).Build(),
	}

	for _, res := range vc.DoMultiWithRetry(ctx, completed, 3) {
		if err := res.Error(); err != nil {
			return err
		}
	}

	slog.Debug("[ValkeyClient] Marked posts seen",
		slog.String("platform", platform),
		slog.Int("count", len(keys)))
	return nil
}

// Seen reports membership for each key, in order.
func (vc *ValkeyClient) Seen(ctx context.Context, platform string, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	setKey := SeenKey(platform)
	completed := make([]valkey.Completed, len(keys))
	for i, k := range keys {
		completed[i] = vc.Client.B().Sismember().Key(setKey).Member(k).Build()
	}

	out := make([]bool, len(keys))
	for i, res := range vc.DoMultiWithRetry(ctx, completed, 3) {
		ok, err := res.AsBool()
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

// AcquireLock sets key to token if it is unset. It returns ErrLockNotAcquired
// when another holder owns the key.
func (vc *ValkeyClient) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) error {
	res := vc.Client.Do(ctx, vc.Client.B().Set().
		Key(VALKEY_LOCK_PREFIX+key).
		Value(token).
		Nx().
		PxMilliseconds(ttl.Milliseconds()).
		Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ErrLockNotAcquired
		}
		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		return err
	}
	return nil
}

func (vc *ValkeyClient) ReleaseLock(ctx context.Context, key, token string) error {
	res := releaseLockScript.Exec(ctx, vc.Client, []string{VALKEY_LOCK_PREFIX + key}, []string{token})
	if err := res.Error(); err != nil && !valkey.IsValkeyNil(err) {
		return err
	}
	return nil
}

func SeenKey(platform string) string {
	return VALKEY_SEEN_PREFIX + platform + ":processed_posts"
}

func (vc *ValkeyClient) DoMultiWithRetry(ctx context.Context, completed []valkey.Completed, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult

	for i := 0; i < retries; i++ {
		results = vc.Client.DoMulti(ctx, completed...)
		hasErr := false
		for _, r := range results {
			if r.Error() != nil {
				hasErr = true
				slog.Warn("[ValkeyClient] Do Multi failed",
					slog.Int("attempt", i+1),
					slog.String("error", r.Error().Error()))
				if isConnectionError(r.Error()) {
					vc.recreateClient(ctx)
				}
				break
			}
		}
		if !hasErr {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	return results
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
