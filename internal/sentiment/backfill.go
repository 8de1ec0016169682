package sentiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/brandpulse/internal/models"
)

// PendingStore lists and updates stored posts that still lack sentiment.
// Implementations must never return or update manually set posts.
type PendingStore interface {
	ListPendingSentiment(ctx context.Context, limit int) ([]models.StoredPost, error)
	UpdateSentiment(ctx context.Context, postID string, outcome models.SentimentOutcome) (bool, error)
}

type BackfillResult struct {
	Scanned   int `json:"scanned"`
	Annotated int `json:"annotated"`
	Failed    int `json:"failed"`
	Updated   int `json:"updated"`
	// Skipped counts rows that became manual between list and update.
	Skipped int `json:"skipped"`
}

type Backfill struct {
	store   PendingStore
	gateway *Gateway
	limit   int
}

func NewBackfill(store PendingStore, gateway *Gateway, limit int) *Backfill {
	if limit <= 0 {
		limit = 500
	}
	return &Backfill{store: store, gateway: gateway, limit: limit}
}

// Run annotates one page of pending posts. Only successful outcomes are
// written back so failed posts stay pending for the next run.
func (b *Backfill) Run(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult

	stored, err := b.store.ListPendingSentiment(ctx, b.limit)
	if err != nil {
		return result, fmt.Errorf("list pending posts: %w", err)
	}
	result.Scanned = len(stored)
	if len(stored) == 0 {
		return result, nil
	}

	candidates := make([]models.CandidatePost, len(stored))
	for i, p := range stored {
		candidates[i] = p.CandidatePost
	}

	resp := b.gateway.Analyze(ctx, candidates)
	result.Annotated = resp.Successful
	result.Failed = resp.Failed

	for i, annotated := range resp.Results {
		if !annotated.Succeeded() {
			continue
		}
		updated, err := b.store.UpdateSentiment(ctx, stored[i].ID, annotated.SentimentOutcome)
		if err != nil {
			slog.Error("[Backfill] Failed to update post",
				slog.String("post_id", stored[i].ID),
				slog.String("error", err.Error()))
			continue
		}
		if updated {
			result.Updated++
		} else {
			result.Skipped++
		}
	}

	slog.Info("[Backfill] Run complete",
		slog.Int("scanned", result.Scanned),
		slog.Int("annotated", result.Annotated),
		slog.Int("failed", result.Failed),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
