package fetchers

import (
	"context"
	"log/slog"

	"github.com/spacesedan/brandpulse/config"
)

// NewRegistry wires an adapter for every platform that has credentials.
// Platforms without credentials are left nil and skipped by the orchestrator.
func NewRegistry(ctx context.Context, creds config.PlatformCredentials) *Registry {
	r := &Registry{
		GoogleNews: NewGoogleNewsFetcher(""),
	}

	if creds.RedditClientID != "" && creds.RedditClientSecret != "" {
		r.Reddit = NewRedditFetcher(RedditConfig{
			ClientID:     creds.RedditClientID,
			ClientSecret: creds.RedditClientSecret,
			UserAgent:    creds.RedditUserAgent,
		})
	}

	if creds.TwitterBearerToken != "" || (creds.TwitterClientID != "" && creds.TwitterClientSecret != "") {
		r.Twitter = NewTwitterFetcher(TwitterConfig{
			BearerToken:  creds.TwitterBearerToken,
			ClientID:     creds.TwitterClientID,
			ClientSecret: creds.TwitterClientSecret,
		})
	}

	if creds.YouTubeAPIKey != "" {
		yt, err := NewYouTubeFetcher(ctx, creds.YouTubeAPIKey)
		if err != nil {
			slog.Error("[Registry] YouTube disabled", slog.String("error", err.Error()))
		} else {
			r.YouTube = yt
		}
	}

	if creds.GoogleAPIKey != "" && creds.GoogleSearchEngineID != "" {
		g, err := NewGoogleFetcher(ctx, creds.GoogleAPIKey, creds.GoogleSearchEngineID)
		if err != nil {
			slog.Error("[Registry] Google search disabled", slog.String("error", err.Error()))
		} else {
			r.Google = g
		}
	}

	if creds.FacebookAccessToken != "" && len(creds.FacebookPageIDs) > 0 {
		r.Facebook = NewFacebookFetcher(creds.FacebookAccessToken, creds.FacebookPageIDs, "")
	}

	if creds.InstagramAccessToken != "" && creds.InstagramUserID != "" {
		r.Instagram = NewInstagramFetcher(creds.InstagramAccessToken, creds.InstagramUserID, "")
	}

	if creds.NewsAPIKey != "" {
		r.News = NewNewsAPIFetcher(creds.NewsAPIKey, "")
	}

	slog.Info("[Registry] Platform adapters configured",
		slog.Any("platforms", r.Configured()))
	return r
}
