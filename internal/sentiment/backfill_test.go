package sentiment

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePendingStore struct {
	pending []models.StoredPost
	listErr error
	limit   int
	updated map[string]models.SentimentOutcome
	manual  map[string]bool
	failIDs map[string]bool
}

func (f *fakePendingStore) ListPendingSentiment(ctx context.Context, limit int) ([]models.StoredPost, error) {
	f.limit = limit
	return f.pending, f.listErr
}

func (f *fakePendingStore) UpdateSentiment(ctx context.Context, postID string, outcome models.SentimentOutcome) (bool, error) {
	if f.failIDs[postID] {
		return false, errors.New("write failed")
	}
	if f.manual[postID] {
		return false, nil
	}
	if f.updated == nil {
		f.updated = make(map[string]models.SentimentOutcome)
	}
	f.updated[postID] = outcome
	return true, nil
}

func storedPosts(texts ...string) []models.StoredPost {
	out := make([]models.StoredPost, len(texts))
	for i, c := range makePosts(texts...) {
		out[i] = models.StoredPost{
			ID:            "post-" + strconv.Itoa(i),
			AnnotatedPost: models.AnnotatedPost{CandidatePost: c},
		}
	}
	return out
}

func TestBackfill_WritesOnlySuccessfulOutcomes(t *testing.T) {
	var calls int32
	store := &fakePendingStore{
		pending: storedPosts("good news", "   ", "plain", "good again"),
		manual:  map[string]bool{"post-2": true},
	}
	b := NewBackfill(store, NewGateway(echoAnalyzer(&calls), nil, testConfig()), 0)

	result, err := b.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 500, store.limit)
	assert.Equal(t, BackfillResult{Scanned: 4, Annotated: 3, Failed: 1, Updated: 2, Skipped: 1}, result)
	assert.Contains(t, store.updated, "post-0")
	assert.Contains(t, store.updated, "post-3")
	assert.NotContains(t, store.updated, "post-1", "no-text post stays pending")
	assert.Equal(t, models.SentimentPositive, *store.updated["post-0"].Sentiment)
}

func TestBackfill_ContinuesPastUpdateErrors(t *testing.T) {
	var calls int32
	store := &fakePendingStore{
		pending: storedPosts("one", "two"),
		failIDs: map[string]bool{"post-0": true},
	}
	b := NewBackfill(store, NewGateway(echoAnalyzer(&calls), nil, testConfig()), 10)

	result, err := b.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 10, store.limit)
	assert.Equal(t, 1, result.Updated)
	assert.Contains(t, store.updated, "post-1")
}

func TestBackfill_NothingPending(t *testing.T) {
	var calls int32
	b := NewBackfill(&fakePendingStore{}, NewGateway(echoAnalyzer(&calls), nil, testConfig()), 0)

	result, err := b.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Zero(t, calls)
}

func TestBackfill_ListError(t *testing.T) {
	var calls int32
	b := NewBackfill(&fakePendingStore{listErr: errors.New("db down")}, NewGateway(echoAnalyzer(&calls), nil, testConfig()), 0)

	_, err := b.Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}
