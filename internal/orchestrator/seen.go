package orchestrator

import (
	"context"
	"log/slog"

	"github.com/spacesedan/brandpulse/internal/models"
)

// SeenFilter drops candidates that were already stored by an earlier run so
// they are not sent for scoring again. The store's unique index stays the
// source of truth; the filter only saves work.
type SeenFilter interface {
	Unseen(ctx context.Context, posts []models.CandidatePost) []models.CandidatePost
	MarkSeen(ctx context.Context, posts []models.StoredPost)
}

// SeenStore is the processed-set API of clients.ValkeyClient.
type SeenStore interface {
	Seen(ctx context.Context, platform string, keys []string) ([]bool, error)
	MarkSeen(ctx context.Context, platform string, keys ...string) error
}

type ValkeySeenFilter struct {
	store SeenStore
}

func NewValkeySeenFilter(store SeenStore) *ValkeySeenFilter {
	return &ValkeySeenFilter{store: store}
}

// Unseen keeps posts without a source URL and fails open when the cache is
// unreachable.
func (f *ValkeySeenFilter) Unseen(ctx context.Context, posts []models.CandidatePost) []models.CandidatePost {
	byPlatform := make(map[models.Platform][]int)
	for i, p := range posts {
		if p.SourceURL != "" {
			byPlatform[p.Platform] = append(byPlatform[p.Platform], i)
		}
	}

	drop := make([]bool, len(posts))
	for platform, idxs := range byPlatform {
		keys := make([]string, len(idxs))
		for i, idx := range idxs {
			keys[i] = posts[idx].SourceURL
		}
		seen, err := f.store.Seen(ctx, string(platform), keys)
		if err != nil {
			slog.Warn("[SeenFilter] Seen lookup failed, keeping posts",
				slog.String("platform", string(platform)),
				slog.String("error", err.Error()))
			continue
		}
		for i, idx := range idxs {
			if i < len(seen) && seen[i] {
				drop[idx] = true
			}
		}
	}

	out := make([]models.CandidatePost, 0, len(posts))
	for i, p := range posts {
		if !drop[i] {
			out = append(out, p)
		}
	}
	return out
}

func (f *ValkeySeenFilter) MarkSeen(ctx context.Context, posts []models.StoredPost) {
	byPlatform := make(map[models.Platform][]string)
	for _, p := range posts {
		if p.SourceURL != "" {
			byPlatform[p.Platform] = append(byPlatform[p.Platform], p.SourceURL)
		}
	}
	for platform, keys := range byPlatform {
		if err := f.store.MarkSeen(ctx, string(platform), keys...); err != nil {
			slog.Warn("[SeenFilter] Failed to mark posts seen",
				slog.String("platform", string(platform)),
				slog.String("error", err.Error()))
		}
	}
}
