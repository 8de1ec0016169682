package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverrideStore struct {
	calls  int
	prev   *models.SentimentLabel
	err    error
	actor  string
	reason string
}

func (f *fakeOverrideStore) OverrideSentiment(ctx context.Context, postID string, label models.SentimentLabel, actor, reason string) (models.SentimentChange, error) {
	f.calls++
	f.actor, f.reason = actor, reason
	if f.err != nil {
		return models.SentimentChange{}, f.err
	}
	return models.SentimentChange{
		ID:                "change-1",
		PostID:            postID,
		PreviousSentiment: f.prev,
		NewSentiment:      label,
		Actor:             actor,
		Reason:            reason,
		ChangedAt:         time.Now().UTC(),
	}, nil
}

func TestOverride_RecordsChange(t *testing.T) {
	prev := models.SentimentNegative
	store := &fakeOverrideStore{prev: &prev}
	svc := NewOverrideService(store)

	change, err := svc.Override(context.Background(), "post-1", " Positive ", " analyst@acme.test ", "misread sarcasm")

	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, change.NewSentiment)
	require.NotNil(t, change.PreviousSentiment)
	assert.Equal(t, models.SentimentNegative, *change.PreviousSentiment)
	assert.Equal(t, "analyst@acme.test", store.actor)
	assert.Equal(t, "misread sarcasm", store.reason)
}

func TestOverride_RejectsBadInput(t *testing.T) {
	store := &fakeOverrideStore{}
	svc := NewOverrideService(store)

	_, err := svc.Override(context.Background(), "post-1", "ecstatic", "analyst", "")
	assert.ErrorIs(t, err, ErrInvalidLabel)

	_, err = svc.Override(context.Background(), "post-1", "neutral", "  ", "")
	assert.ErrorIs(t, err, ErrMissingActor)

	assert.Zero(t, store.calls)
}

func TestOverride_PropagatesStoreError(t *testing.T) {
	notFound := errors.New("post not found")
	svc := NewOverrideService(&fakeOverrideStore{err: notFound})

	_, err := svc.Override(context.Background(), "missing", "neutral", "analyst", "")
	assert.ErrorIs(t, err, notFound)
}
