package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spacesedan/brandpulse/internal/models"
)

var (
	ErrInvalidLabel = errors.New("invalid sentiment label")
	ErrMissingActor = errors.New("override requires an actor")
)

// OverrideStore applies a manual correction atomically with its change-log
// entry.
type OverrideStore interface {
	OverrideSentiment(ctx context.Context, postID string, label models.SentimentLabel, actor, reason string) (models.SentimentChange, error)
}

type OverrideService struct {
	store OverrideStore
}

func NewOverrideService(store OverrideStore) *OverrideService {
	return &OverrideService{store: store}
}

// Override sets a post's sentiment by hand. The post is flagged manual so
// automated jobs leave it alone from then on.
func (o *OverrideService) Override(ctx context.Context, postID, label, actor, reason string) (models.SentimentChange, error) {
	next := models.SentimentLabel(strings.ToLower(strings.TrimSpace(label)))
	if !next.Valid() {
		return models.SentimentChange{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return models.SentimentChange{}, ErrMissingActor
	}

	change, err := o.store.OverrideSentiment(ctx, postID, next, actor, strings.TrimSpace(reason))
	if err != nil {
		return models.SentimentChange{}, fmt.Errorf("override post %s: %w", postID, err)
	}

	previous := "null"
	if change.PreviousSentiment != nil {
		previous = string(*change.PreviousSentiment)
	}
	slog.Info("[Override] Sentiment manually set",
		slog.String("post_id", postID),
		slog.String("previous", previous),
		slog.String("new", string(next)),
		slog.String("actor", actor))
	return change, nil
}
