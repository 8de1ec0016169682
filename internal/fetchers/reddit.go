package fetchers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL  = "https://oauth.reddit.com"
	REDDIT_WEB_URL  = "https://www.reddit.com"
)

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// AuthURL and BaseURL default to the public endpoints.
	AuthURL string
	BaseURL string
}

type RedditFetcher struct {
	baseURL   string
	userAgent string
	tokens    *clients.TokenCache
	client    *http.Client
	policy    retrypolicy.RetryPolicy[*http.Response]
}

// NewRedditFetcher builds the adapter with its own token cache. Pass a shared
// cache through NewRedditFetcherWithTokens when several adapters share one
// app registration.
func NewRedditFetcher(cfg RedditConfig) *RedditFetcher {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = REDDIT_AUTH_URL
	}
	oauthConf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     authURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	client := defaultHTTPClient()
	tokens := clients.NewTokenCache("reddit", clients.ClientCredentialsToken(oauthConf, client), clients.DefaultTokenSafetyMargin)
	return NewRedditFetcherWithTokens(cfg, tokens, client)
}

func NewRedditFetcherWithTokens(cfg RedditConfig, tokens *clients.TokenCache, client *http.Client) *RedditFetcher {
	if client == nil {
		client = defaultHTTPClient()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = REDDIT_API_URL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "brandpulse-bot/0.1"
	}
	return &RedditFetcher{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		tokens:    tokens,
		client:    client,
		policy:    defaultPolicy(),
	}
}

func (rf *RedditFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	start, end := opts.Window()
	resp, err := rf.search(ctx, keyword, opts, start, end)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			slog.Warn("[RedditFetcher] Token rejected - Refreshing and Retrying...",
				slog.String("keyword", keyword))
			rf.tokens.Invalidate()
			resp, err = rf.search(ctx, keyword, opts, start, end)
		}
	}
	if err != nil {
		slog.Error("[RedditFetcher] Search failed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		d := child.Data
		sec, frac := math.Modf(d.CreatedUTC)
		created := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		if !opts.InWindow(created) {
			continue
		}
		if !MatchesFilters(d.Title+" "+d.Selftext, opts.Include, opts.Exclude) {
			continue
		}

		post, err := models.NewCandidatePost(keyword, models.PlatformReddit, created)
		if err != nil {
			continue
		}
		post.Author = models.Author{ID: d.AuthorFullname, Name: d.Author}
		post.Content = models.Content{
			Text:  joinText(d.Title, d.Selftext),
			Title: d.Title,
		}
		if strings.HasPrefix(d.Thumbnail, "http") {
			post.Content.MediaURL = d.Thumbnail
		}
		post.Metrics = models.Metrics{Likes: d.Ups, Comments: d.NumComments}
		post.SourceURL = REDDIT_WEB_URL + d.Permalink
		post.ExternalID = d.Name
		posts = append(posts, post)
	}

	slog.Info("[RedditFetcher] Fetched posts",
		slog.String("keyword", keyword),
		slog.Int("returned", len(resp.Data.Children)),
		slog.Int("kept", len(posts)))
	return posts
}

func (rf *RedditFetcher) search(ctx context.Context, keyword string, opts FetchOptions, start, end time.Time) (*models.RedditAPIResponse, error) {
	token, err := rf.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", BuildQuery(keyword, opts.Include, opts.Exclude))
	params.Set("sort", "new")
	params.Set("t", redditTimeRange(end.Sub(start)))
	params.Set("limit", strconv.Itoa(100))
	params.Set("type", "link")
	params.Set("raw_json", "1")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("User-Agent", rf.userAgent)

	var out models.RedditAPIResponse
	if err := getJSON(ctx, rf.client, rf.policy, rf.baseURL+"/search?"+params.Encode(), header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// redditTimeRange picks the narrowest "t" bucket covering the window. Reddit
// cannot filter by exact timestamps, so results are trimmed client-side.
func redditTimeRange(window time.Duration) string {
	switch {
	case window <= time.Hour:
		return "hour"
	case window <= 24*time.Hour:
		return "day"
	case window <= 7*24*time.Hour:
		return "week"
	case window <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}
