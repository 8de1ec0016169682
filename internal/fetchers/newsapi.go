package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/models"
)

const NEWS_API_URL = "https://newsapi.org"

type NewsAPIFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	policy  retrypolicy.RetryPolicy[*http.Response]
}

func NewNewsAPIFetcher(apiKey, baseURL string) *NewsAPIFetcher {
	if baseURL == "" {
		baseURL = NEWS_API_URL
	}
	return &NewsAPIFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  defaultHTTPClient(),
		policy:  defaultPolicy(),
	}
}

func (n *NewsAPIFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	if n.apiKey == "" {
		slog.Error("[NewsAPIFetcher] API key is missing")
		return nil
	}
	start, end := opts.Window()

	params := url.Values{}
	params.Set("q", BuildQuery(keyword, opts.Include, opts.Exclude))
	params.Set("from", start.Format(time.RFC3339))
	params.Set("to", end.Format(time.RFC3339))
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", "100")
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}

	header := http.Header{}
	header.Set("X-Api-Key", n.apiKey)

	var resp models.NewsAPIEverythingResponse
	if err := getJSON(ctx, n.client, n.policy, n.baseURL+"/v2/everything?"+params.Encode(), header, &resp); err != nil {
		slog.Error("[NewsAPIFetcher] Request failed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}
	if resp.Status != "ok" {
		slog.Error("[NewsAPIFetcher] API returned an error",
			slog.String("keyword", keyword),
			slog.String("code", resp.Code),
			slog.String("message", resp.Message))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		created, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil || !opts.InWindow(created) || a.URL == "" {
			continue
		}
		post, err := models.NewCandidatePost(keyword, models.PlatformNews, created)
		if err != nil {
			continue
		}
		name := a.Author
		if name == "" {
			name = a.Source.Name
		}
		post.Author = models.Author{ID: a.Source.ID, Name: name}
		post.Content = models.Content{
			Text:        joinText(a.Title, a.Description),
			Title:       a.Title,
			Description: a.Description,
			MediaURL:    a.URLToImage,
		}
		post.SourceURL = a.URL
		posts = append(posts, post)
	}

	slog.Info("[NewsAPIFetcher] Fetched articles",
		slog.String("keyword", keyword),
		slog.Int("total_results", resp.TotalResults),
		slog.Int("kept", len(posts)))
	return posts
}
