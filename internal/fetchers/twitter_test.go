package fetchers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwitterFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "acme -spam -is:retweet lang:en", q.Get("query"))
		assert.Equal(t, "2024-05-01T10:00:00Z", q.Get("start_time"))
		assert.Equal(t, "2024-05-01T11:00:00Z", q.Get("end_time"))

		_, _ = w.Write([]byte(`{
			"data":[{"id":"99","text":"Loving my acme anvil","author_id":"u1","created_at":"2024-05-01T10:30:00.000Z",
				"public_metrics":{"retweet_count":2,"reply_count":1,"like_count":7,"quote_count":1,"impression_count":400}}],
			"includes":{"users":[{"id":"u1","name":"Road Runner","username":"beepbeep"}]},
			"meta":{"result_count":1}}`))
	}))
	defer srv.Close()

	tf := NewTwitterFetcher(TwitterConfig{BearerToken: "static-token", BaseURL: srv.URL})
	opts := testWindow()
	opts.Exclude = []string{"spam"}
	opts.Language = "en"

	posts := tf.Fetch(context.Background(), "acme", opts)

	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, models.PlatformTwitter, p.Platform)
	assert.Equal(t, "https://twitter.com/i/web/status/99", p.SourceURL)
	assert.Equal(t, "beepbeep", p.Author.Name)
	assert.Equal(t, models.Metrics{Likes: 7, Comments: 1, Shares: 3, Views: 400}, p.Metrics)
}

func TestTwitterFetcher_SourceURLIgnoresAuthorExpansion(t *testing.T) {
	withUsers := `{"data":[{"id":"99","text":"acme","author_id":"u1","created_at":"2024-05-01T10:30:00.000Z"}],
		"includes":{"users":[{"id":"u1","username":"beepbeep"}]}}`
	withoutUsers := `{"data":[{"id":"99","text":"acme","author_id":"u1","created_at":"2024-05-01T10:30:00.000Z"}]}`

	var urls []string
	for _, body := range []string{withUsers, withoutUsers} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		tf := NewTwitterFetcher(TwitterConfig{BearerToken: "static-token", BaseURL: srv.URL})
		posts := tf.Fetch(context.Background(), "acme", testWindow())
		srv.Close()
		require.Len(t, posts, 1)
		urls = append(urls, posts[0].SourceURL)
	}

	assert.Equal(t, urls[0], urls[1])
	assert.Equal(t, "https://twitter.com/i/web/status/99", urls[0])
}

func TestTwitterFetcher_FailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tf := NewTwitterFetcher(TwitterConfig{BearerToken: "static-token", BaseURL: srv.URL})
	assert.Empty(t, tf.Fetch(context.Background(), "acme", testWindow()))
}
