package fetchers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	TWITTER_API_URL  = "https://api.twitter.com"
	TWITTER_AUTH_URL = "https://api.twitter.com/oauth2/token"
	TWITTER_WEB_URL  = "https://twitter.com"
)

type TwitterConfig struct {
	// BearerToken is used as-is when set. Otherwise an app-only token is
	// obtained with the client credentials.
	BearerToken  string
	ClientID     string
	ClientSecret string
	BaseURL      string
	AuthURL      string
	MaxResults   int
}

type TwitterFetcher struct {
	baseURL    string
	maxResults int
	tokens     *clients.TokenCache
	client     *http.Client
	policy     retrypolicy.RetryPolicy[*http.Response]
}

func NewTwitterFetcher(cfg TwitterConfig) *TwitterFetcher {
	client := defaultHTTPClient()

	var fetch clients.TokenFunc
	if cfg.BearerToken != "" {
		fetch = clients.StaticToken(cfg.BearerToken)
	} else {
		authURL := cfg.AuthURL
		if authURL == "" {
			authURL = TWITTER_AUTH_URL
		}
		fetch = clients.ClientCredentialsToken(&clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     authURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}, client)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = TWITTER_API_URL
	}
	maxResults := cfg.MaxResults
	if maxResults < 10 || maxResults > 100 {
		maxResults = 100
	}

	return &TwitterFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		tokens:     clients.NewTokenCache("twitter", fetch, clients.DefaultTokenSafetyMargin),
		client:     client,
		policy:     defaultPolicy(),
	}
}

func (tf *TwitterFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	start, end := opts.Window()

	resp, err := tf.search(ctx, keyword, opts, start, end)
	var statusErr *clients.StatusError
	if err != nil && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		tf.tokens.Invalidate()
		resp, err = tf.search(ctx, keyword, opts, start, end)
	}
	if err != nil {
		slog.Error("[TwitterFetcher] Recent search failed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}

	users := make(map[string]models.TwitterUser, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}

	posts := make([]models.CandidatePost, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		created, err := time.Parse(time.RFC3339, tweet.CreatedAt)
		if err != nil || !opts.InWindow(created) {
			continue
		}

		post, err := models.NewCandidatePost(keyword, models.PlatformTwitter, created)
		if err != nil {
			continue
		}
		user := users[tweet.AuthorID]
		post.Author = models.Author{ID: tweet.AuthorID, Name: user.Username}
		post.Content = models.Content{Text: tweet.Text}
		post.Metrics = models.Metrics{
			Likes:    tweet.PublicMetrics.LikeCount,
			Comments: tweet.PublicMetrics.ReplyCount,
			Shares:   tweet.PublicMetrics.RetweetCount + tweet.PublicMetrics.QuoteCount,
			Views:    tweet.PublicMetrics.ImpressionCount,
		}
		// handles can change and the author expansion may be missing; the
		// id-only form keeps the dedupe key stable
		post.SourceURL = TWITTER_WEB_URL + "/i/web/status/" + tweet.ID
		post.ExternalID = tweet.ID
		posts = append(posts, post)
	}

	slog.Info("[TwitterFetcher] Fetched tweets",
		slog.String("keyword", keyword),
		slog.Int("count", len(posts)))
	return posts
}

func (tf *TwitterFetcher) search(ctx context.Context, keyword string, opts FetchOptions, start, end time.Time) (*models.TwitterSearchResponse, error) {
	token, err := tf.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	query := BuildQuery(keyword, opts.Include, opts.Exclude) + " -is:retweet"
	if opts.Language != "" {
		query += " lang:" + opts.Language
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start_time", start.Format(time.RFC3339))
	params.Set("end_time", end.Format(time.RFC3339))
	params.Set("max_results", itoa(tf.maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,lang,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,name")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var out models.TwitterSearchResponse
	if err := getJSON(ctx, tf.client, tf.policy, tf.baseURL+"/2/tweets/search/recent?"+params.Encode(), header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
