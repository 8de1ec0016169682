package clients

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const DefaultTokenSafetyMargin = 60 * time.Second

// TokenFunc fetches a fresh bearer token from the provider.
type TokenFunc func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds one bearer token and refreshes it shortly before expiry.
// Concurrent callers that find the token stale share a single refresh.
type TokenCache struct {
	name   string
	fetch  TokenFunc
	margin time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token
	sf    singleflight.Group
}

func NewTokenCache(name string, fetch TokenFunc, margin time.Duration) *TokenCache {
	if margin < 0 {
		margin = 0
	}
	return &TokenCache{
		name:   name,
		fetch:  fetch,
		margin: margin,
		now:    time.Now,
	}
}

// ClientCredentialsToken adapts an oauth2 client-credentials config. The
// optional httpClient is used for the token request itself.
func ClientCredentialsToken(cfg *clientcredentials.Config, httpClient *http.Client) TokenFunc {
	return func(ctx context.Context) (*oauth2.Token, error) {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		return cfg.Token(ctx)
	}
}

// StaticToken never expires. Used when a provider hands out long-lived
// bearer tokens.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (*oauth2.Token, error) {
		if token == "" {
			return nil, errors.New("static token is empty")
		}
		return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
	}
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if c.fresh(tok) {
		return tok.AccessToken, nil
	}

	v, err, shared := c.sf.Do("token", func() (interface{}, error) {
		// another caller may have finished a refresh while we waited
		c.mu.RLock()
		current := c.token
		c.mu.RUnlock()
		if c.fresh(current) {
			return current, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		next, err := c.fetch(refreshCtx)
		if err != nil {
			return nil, err
		}
		if next == nil || next.AccessToken == "" {
			return nil, errors.New("token endpoint returned an empty token")
		}

		c.mu.Lock()
		c.token = next
		c.mu.Unlock()

		slog.Debug("[TokenCache] Refreshed token",
			slog.String("cache", c.name),
			slog.Time("expiry", next.Expiry))
		return next, nil
	})
	if err != nil {
		slog.Warn("[TokenCache] Token refresh failed",
			slog.String("cache", c.name),
			slog.Bool("shared", shared),
			slog.String("error", err.Error()))
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes. Adapters call
// it after the provider rejects a token that looked valid.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *TokenCache) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return c.now().Add(c.margin).Before(tok.Expiry)
}
