package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

func TestTokenCache_ConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	cache := NewTokenCache("test", func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &oauth2.Token{AccessToken: "tok-1", Expiry: time.Now().Add(time.Hour)}, nil
	}, time.Minute)

	var wg sync.WaitGroup
	tokens := make([]string, 20)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, tok := range tokens {
		assert.Equal(t, "tok-1", tok)
	}
}

func TestTokenCache_RefreshesInsideSafetyMargin(t *testing.T) {
	var calls int32
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache("test", func(ctx context.Context) (*oauth2.Token, error) {
		n := atomic.AddInt32(&calls, 1)
		return &oauth2.Token{
			AccessToken: "tok",
			Expiry:      now.Add(5 * time.Minute),
		}, errIf(n > 5)
	}, time.Minute)
	cache.now = func() time.Time { return now }

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fresh token is reused")

	// 30s before expiry is inside the 60s margin
	cache.now = func() time.Time { return now.Add(4*time.Minute + 30*time.Second) }
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_Invalidate(t *testing.T) {
	var calls int32
	cache := NewTokenCache("test", func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		return &oauth2.Token{AccessToken: "tok"}, nil
	}, time.Minute)

	_, _ = cache.Token(context.Background())
	cache.Invalidate()
	_, _ = cache.Token(context.Background())

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_ErrorIsNotCached(t *testing.T) {
	var calls int32
	cache := NewTokenCache("test", func(ctx context.Context) (*oauth2.Token, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("boom")
		}
		return &oauth2.Token{AccessToken: "tok"}, nil
	}, time.Minute)

	_, err := cache.Token(context.Background())
	require.Error(t, err)

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestClientCredentialsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := &clientcredentials.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	cache := NewTokenCache("reddit", ClientCredentialsToken(cfg, srv.Client()), time.Minute)

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func errIf(cond bool) error {
	if cond {
		return errors.New("too many refreshes")
	}
	return nil
}
