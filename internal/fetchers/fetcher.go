// Package fetchers holds one adapter per external search provider. Every
// adapter normalizes its provider's response into models.CandidatePost and
// never returns an error: upstream failures are logged and produce an empty
// or partial result.
package fetchers

import (
	"context"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
)

type FetchOptions struct {
	Include   []string
	Exclude   []string
	Language  string
	Country   string
	StartDate time.Time
	EndDate   time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost
}

// FetcherFunc lets a plain function act as a Fetcher.
type FetcherFunc func(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost

func (f FetcherFunc) Fetch(ctx context.Context, keyword string, opts FetchOptions) []models.CandidatePost {
	return f(ctx, keyword, opts)
}

// Registry holds the configured adapter for each platform. A nil field means
// the platform has no credentials in this deployment.
type Registry struct {
	YouTube    Fetcher
	Twitter    Fetcher
	Reddit     Fetcher
	Google     Fetcher
	Facebook   Fetcher
	Instagram  Fetcher
	News       Fetcher
	GoogleNews Fetcher
}

// For returns the adapter for p. The switch must cover every Platform.
func (r *Registry) For(p models.Platform) (Fetcher, bool) {
	var f Fetcher
	switch p {
	case models.PlatformYouTube:
		f = r.YouTube
	case models.PlatformTwitter:
		f = r.Twitter
	case models.PlatformReddit:
		f = r.Reddit
	case models.PlatformGoogle:
		f = r.Google
	case models.PlatformFacebook:
		f = r.Facebook
	case models.PlatformInstagram:
		f = r.Instagram
	case models.PlatformNews:
		f = r.News
	case models.PlatformGoogleNews:
		f = r.GoogleNews
	default:
		return nil, false
	}
	return f, f != nil
}

// Configured lists platforms that have an adapter, in SupportedPlatforms
// order.
func (r *Registry) Configured() []models.Platform {
	var out []models.Platform
	for _, p := range models.SupportedPlatforms {
		if _, ok := r.For(p); ok {
			out = append(out, p)
		}
	}
	return out
}
