package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/spacesedan/brandpulse/internal/models"
)

const GOOGLE_NEWS_RSS_URL = "https://news.google.com/rss/search"

type GoogleNewsFetcher struct {
	baseURL string
	client  *http.Client
}

func NewGoogleNewsFetcher(baseURL string) *GoogleNewsFetcher {
	if baseURL == "" {
		baseURL = GOOGLE_NEWS_RSS_URL
	}
	return &GoogleNewsFetcher{baseURL: baseURL, client: defaultHTTPClient()}
}

func (g *GoogleNewsFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	start, end := opts.Window()

	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	country := strings.ToUpper(opts.Country)
	if country == "" {
		country = "US"
	}

	params := url.Values{}
	params.Set("q", BuildQuery(keyword, opts.Include, opts.Exclude)+" when:"+googleNewsWhen(end.Sub(start)))
	params.Set("hl", lang+"-"+country)
	params.Set("gl", country)
	params.Set("ceid", country+":"+lang)

	parser := gofeed.NewParser()
	parser.Client = g.client
	parser.UserAgent = "brandpulse-bot/0.1"

	feed, err := parser.ParseURLWithContext(g.baseURL+"?"+params.Encode(), ctx)
	if err != nil {
		slog.Error("[GoogleNewsFetcher] Failed to fetch feed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(feed.Items))
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.IsZero() || !opts.InWindow(published) || item.Link == "" {
			continue
		}

		post, err := models.NewCandidatePost(keyword, models.PlatformGoogleNews, published)
		if err != nil {
			continue
		}
		author := feed.Title
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}
		post.Author = models.Author{Name: author}
		post.Content = models.Content{
			Text:        item.Title,
			Title:       item.Title,
			Description: item.Description,
		}
		if item.Image != nil {
			post.Content.MediaURL = item.Image.URL
		}
		post.SourceURL = item.Link
		post.ExternalID = item.GUID
		posts = append(posts, post)
	}

	slog.Info("[GoogleNewsFetcher] Fetched items",
		slog.String("keyword", keyword),
		slog.Int("count", len(posts)))
	return posts
}

func googleNewsWhen(window time.Duration) string {
	hours := int(window.Hours() + 0.999)
	if hours < 1 {
		hours = 1
	}
	if hours > 24 {
		return itoa((hours+23)/24) + "d"
	}
	return itoa(hours) + "h"
}
