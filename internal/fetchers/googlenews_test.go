package fetchers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleNewsFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>"acme" - Google News</title>
<item><title>Acme opens new plant - Reuters</title><link>https://news.google.com/articles/1</link>
<guid isPermaLink="false">g1</guid><pubDate>Wed, 01 May 2024 10:40:00 GMT</pubDate>
<description>&lt;a href="x"&gt;Acme opens new plant&lt;/a&gt;</description></item>
<item><title>Older Acme story</title><link>https://news.google.com/articles/2</link>
<guid isPermaLink="false">g2</guid><pubDate>Tue, 30 Apr 2024 08:00:00 GMT</pubDate></item>
</channel></rss>`

func TestGoogleNewsFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.True(t, strings.HasSuffix(q.Get("q"), "when:1h"), q.Get("q"))
		assert.Equal(t, "US:en", q.Get("ceid"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(googleNewsFixture))
	}))
	defer srv.Close()

	posts := NewGoogleNewsFetcher(srv.URL).Fetch(context.Background(), "acme", testWindow())

	require.Len(t, posts, 1)
	assert.Equal(t, models.PlatformGoogleNews, posts[0].Platform)
	assert.Equal(t, "https://news.google.com/articles/1", posts[0].SourceURL)
	assert.Equal(t, "g1", posts[0].ExternalID)
	assert.Equal(t, "Acme opens new plant - Reuters", posts[0].Content.Text)
}

func TestGoogleNewsFetcher_BadFeedReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Empty(t, NewGoogleNewsFetcher(srv.URL).Fetch(context.Background(), "acme", testWindow()))
}
