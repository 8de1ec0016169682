package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// metatag keys that carry a publish time, most specific first
var publishedMetatags = []string{
	"article:published_time",
	"og:article:published_time",
	"datepublished",
	"date",
	"pubdate",
	"og:updated_time",
}

type GoogleFetcher struct {
	service  *customsearch.Service
	engineID string
	now      func() time.Time
}

func NewGoogleFetcher(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*GoogleFetcher, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("[GoogleFetcher] failed to create service: %w", err)
	}
	return &GoogleFetcher{service: service, engineID: engineID, now: time.Now}, nil
}

func (gf *GoogleFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	call := gf.service.Cse.List().
		Cx(gf.engineID).
		Q(quoteTerm(keyword)).
		DateRestrict("d1").
		Num(10)
	if len(opts.Include) > 0 {
		call = call.OrTerms(strings.Join(opts.Include, " "))
	}
	if len(opts.Exclude) > 0 {
		call = call.ExcludeTerms(strings.Join(opts.Exclude, " "))
	}
	if opts.Language != "" {
		call = call.Lr("lang_" + opts.Language)
	}
	if opts.Country != "" {
		call = call.Gl(strings.ToLower(opts.Country))
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		slog.Error("[GoogleFetcher] Search failed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		// undated pages are treated as seen now since dateRestrict already
		// limited the result set to the last day, clamped to the window end
		created, ok := publishedTime(item.Pagemap)
		if !ok {
			created = gf.now().UTC()
			if !opts.EndDate.IsZero() && created.After(opts.EndDate) {
				created = opts.EndDate.UTC()
			}
		} else if !opts.InWindow(created) {
			continue
		}

		post, err := models.NewCandidatePost(keyword, models.PlatformGoogle, created)
		if err != nil {
			continue
		}
		post.Author = models.Author{Name: item.DisplayLink}
		post.Content = models.Content{
			Text:        joinText(item.Title, item.Snippet),
			Title:       item.Title,
			Description: item.Snippet,
		}
		post.SourceURL = item.Link
		posts = append(posts, post)
	}

	slog.Info("[GoogleFetcher] Fetched results",
		slog.String("keyword", keyword),
		slog.Int("count", len(posts)))
	return posts
}

func publishedTime(pagemap []byte) (time.Time, bool) {
	if len(pagemap) == 0 {
		return time.Time{}, false
	}
	var pm struct {
		Metatags []map[string]interface{} `json:"metatags"`
	}
	if err := json.Unmarshal(pagemap, &pm); err != nil {
		return time.Time{}, false
	}
	for _, tags := range pm.Metatags {
		for _, key := range publishedMetatags {
			raw, ok := tags[key].(string)
			if !ok || raw == "" {
				continue
			}
			for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
				if t, err := time.Parse(layout, raw); err == nil {
					return t.UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}
