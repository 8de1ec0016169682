package fetchers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redditSearchFixture = `{"data":{"children":[
 {"kind":"t3","data":{"id":"a1","name":"t3_a1","title":"Acme rocket review","selftext":"works great","author":"wile","author_fullname":"t2_w","ups":12,"num_comments":3,"created_utc":1714559400,"permalink":"/r/gadgets/comments/a1/acme/","thumbnail":"self"}},
 {"kind":"t3","data":{"id":"a2","name":"t3_a2","title":"Old acme post","selftext":"","author":"coyote","ups":1,"num_comments":0,"created_utc":1714400000,"permalink":"/r/gadgets/comments/a2/old/"}}
]}}`

func newRedditTestServer(t *testing.T, searchStatus func(n int32) int) (*httptest.Server, *int32, *int32) {
	t.Helper()
	var tokenCalls, searchCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+n)) + `","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&searchCalls, 1)
		assert.Equal(t, "new", r.URL.Query().Get("sort"))
		assert.Equal(t, "hour", r.URL.Query().Get("t"))
		if status := searchStatus(n); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(redditSearchFixture))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls, &searchCalls
}

func TestRedditFetcher_MapsAndFiltersWindow(t *testing.T) {
	srv, _, _ := newRedditTestServer(t, func(int32) int { return http.StatusOK })
	rf := NewRedditFetcher(RedditConfig{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL + "/token", BaseURL: srv.URL})

	posts := rf.Fetch(context.Background(), "acme", testWindow())

	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, models.PlatformReddit, p.Platform)
	assert.Equal(t, "acme", p.Keyword)
	assert.Equal(t, "https://www.reddit.com/r/gadgets/comments/a1/acme/", p.SourceURL)
	assert.Equal(t, "t3_a1", p.ExternalID)
	assert.Equal(t, "wile", p.Author.Name)
	assert.Equal(t, int64(12), p.Metrics.Likes)
	assert.Equal(t, int64(3), p.Metrics.Comments)
	assert.Equal(t, "Acme rocket review\nworks great", p.Content.Text)
	assert.Empty(t, p.Content.MediaURL)
}

func TestRedditFetcher_RefreshesTokenOnUnauthorized(t *testing.T) {
	srv, tokenCalls, searchCalls := newRedditTestServer(t, func(n int32) int {
		if n == 1 {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	})
	rf := NewRedditFetcher(RedditConfig{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL + "/token", BaseURL: srv.URL})

	posts := rf.Fetch(context.Background(), "acme", testWindow())

	assert.Len(t, posts, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(searchCalls))
}

func TestRedditFetcher_UpstreamFailureReturnsEmpty(t *testing.T) {
	srv, _, _ := newRedditTestServer(t, func(int32) int { return http.StatusForbidden })
	rf := NewRedditFetcher(RedditConfig{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL + "/token", BaseURL: srv.URL})

	assert.Empty(t, rf.Fetch(context.Background(), "acme", testWindow()))
}

func TestRedditFetcher_TokenFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	rf := NewRedditFetcher(RedditConfig{ClientID: "id", ClientSecret: "bad", AuthURL: srv.URL, BaseURL: srv.URL})

	assert.Empty(t, rf.Fetch(context.Background(), "acme", testWindow()))
}
