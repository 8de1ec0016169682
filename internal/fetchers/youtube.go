package fetchers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const YOUTUBE_WATCH_URL = "https://www.youtube.com/watch?v="

type YouTubeFetcher struct {
	service    *youtube.Service
	maxResults int64
}

// NewYouTubeFetcher authenticates with an API key. Extra options (endpoint,
// http client) are passed through to the service.
func NewYouTubeFetcher(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeFetcher, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("[YouTubeFetcher] failed to create service: %w", err)
	}
	return &YouTubeFetcher{service: service, maxResults: 25}, nil
}

func (yf *YouTubeFetcher) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	start, end := opts.Window()

	call := yf.service.Search.List([]string{"snippet"}).
		Q(BuildQuery(keyword, opts.Include, opts.Exclude)).
		Type("video").
		Order("date").
		PublishedAfter(start.Format(time.RFC3339)).
		PublishedBefore(end.Format(time.RFC3339)).
		MaxResults(yf.maxResults)
	if opts.Language != "" {
		call = call.RelevanceLanguage(opts.Language)
	}
	if opts.Country != "" {
		call = call.RegionCode(opts.Country)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		slog.Error("[YouTubeFetcher] Search failed",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil
	}

	posts := make([]models.CandidatePost, 0, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil || !opts.InWindow(created) {
			continue
		}
		post, err := models.NewCandidatePost(keyword, models.PlatformYouTube, created)
		if err != nil {
			continue
		}
		s := item.Snippet
		post.Author = models.Author{ID: s.ChannelId, Name: s.ChannelTitle}
		post.Content = models.Content{
			Text:        joinText(s.Title, s.Description),
			Title:       s.Title,
			Description: s.Description,
		}
		if s.Thumbnails != nil && s.Thumbnails.High != nil {
			post.Content.MediaURL = s.Thumbnails.High.Url
		}
		post.SourceURL = YOUTUBE_WATCH_URL + item.Id.VideoId
		post.ExternalID = item.Id.VideoId
		posts = append(posts, post)
		ids = append(ids, item.Id.VideoId)
	}

	if len(ids) == 0 {
		return posts
	}

	stats, err := yf.service.Videos.List([]string{"statistics"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		slog.Warn("[YouTubeFetcher] Statistics lookup failed, keeping posts without metrics",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return posts
	}

	byID := make(map[string]*youtube.VideoStatistics, len(stats.Items))
	for _, v := range stats.Items {
		if v.Statistics != nil {
			byID[v.Id] = v.Statistics
		}
	}
	for i := range posts {
		if st, ok := byID[posts[i].ExternalID]; ok {
			posts[i].Metrics = models.Metrics{
				Likes:    int64(st.LikeCount),
				Comments: int64(st.CommentCount),
				Views:    int64(st.ViewCount),
			}
		}
	}

	slog.Info("[YouTubeFetcher] Fetched videos",
		slog.String("keyword", keyword),
		slog.Int("count", len(posts)))
	return posts
}
