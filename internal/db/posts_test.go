package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewPostRepository(db)
	repo.now = func() time.Time { return fixedNow }
	n := 0
	repo.newID = func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
	return repo, mock
}

func annotated(n int) []models.AnnotatedPost {
	posts := make([]models.AnnotatedPost, n)
	for i := range posts {
		posts[i] = models.AnnotatedPost{
			CandidatePost: models.CandidatePost{
				Keyword:   "acme",
				Platform:  models.PlatformYouTube,
				CreatedAt: fixedNow.Add(-time.Duration(i) * time.Minute),
				Author:    models.Author{Name: "someone"},
				Content:   models.Content{Text: "Acme rocks"},
				SourceURL: fmt.Sprintf("https://youtube.com/watch?v=%d", i),
				BrandID:   "acme",
				BrandName: "Acme",
			},
			SentimentOutcome: models.FailedOutcome(models.ErrorKindTransport),
		}
	}
	return posts
}

func idRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}

func TestSaveBatch_BulkInsertThenDuplicates(t *testing.T) {
	repo, mock := newTestRepo(t)
	posts := annotated(2)

	mock.ExpectQuery(`INSERT INTO posts .* ON CONFLICT \(source_url, platform\) WHERE source_url IS NOT NULL DO NOTHING`).
		WillReturnRows(idRows("00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002"))
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(idRows())

	first, err := repo.SaveBatch(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Saved)
	assert.Equal(t, 0, first.Duplicates)
	require.Len(t, first.Inserted, 2)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", first.Inserted[0].ID)
	assert.Equal(t, fixedNow, first.Inserted[0].FetchedAt)
	assert.Nil(t, first.Inserted[0].Sentiment, "error outcomes are stored without a label")

	second, err := repo.SaveBatch(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Saved)
	assert.Equal(t, 2, second.Duplicates)
	assert.Empty(t, second.Inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_PartialDuplicates(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(idRows("00000000-0000-0000-0000-000000000002"))

	result, err := repo.SaveBatch(context.Background(), annotated(3))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", result.Inserted[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_FallsBackToRowInserts(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnError(errors.New("invalid byte sequence for encoding"))
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(idRows("00000000-0000-0000-0000-000000000001"))
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(idRows())
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnError(errors.New("invalid byte sequence for encoding"))

	result, err := repo.SaveBatch(context.Background(), annotated(4))
	require.NoError(t, err)
	assert.Equal(t, SaveResult{
		Saved:      1,
		Duplicates: 2,
		Errors:     1,
		Inserted:   result.Inserted,
	}, result)
	require.Len(t, result.Inserted, 1)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", result.Inserted[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_ChunksLargeBatches(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`INSERT INTO posts`).WillReturnRows(idRows())
	mock.ExpectQuery(`INSERT INTO posts`).WillReturnRows(idRows())

	result, err := repo.SaveBatch(context.Background(), annotated(MAX_INSERT_ROWS+1))
	require.NoError(t, err)
	assert.Equal(t, MAX_INSERT_ROWS+1, result.Duplicates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)
	result, err := repo.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSentiment_SkipsManualRows(t *testing.T) {
	repo, mock := newTestRepo(t)
	outcome := models.LabeledOutcome(models.SentimentPositive, 0.8, 0.6, "vader", fixedNow)

	mock.ExpectExec(`UPDATE posts SET .* WHERE id = \$1 AND sentiment_manual = FALSE`).
		WithArgs("post-1", "positive", 0.8, 0.6, "vader", fixedNow, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE posts SET`).
		WithArgs("post-2", "positive", 0.8, 0.6, "vader", fixedNow, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateSentiment(context.Background(), "post-1", outcome)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateSentiment(context.Background(), "post-2", outcome)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var postRowColumns = []string{
	"id", "brand_id", "brand_name", "group_id", "group_name",
	"keyword", "platform", "created_at", "author_id", "author_name",
	"content_text", "content_description", "content_title", "media_url",
	"likes", "comments", "shares", "views", "source_url", "external_id",
	"sentiment", "sentiment_score", "sentiment_confidence", "sentiment_source",
	"sentiment_analyzed_at", "sentiment_error", "sentiment_manual", "fetched_at",
}

func TestListPendingSentiment(t *testing.T) {
	repo, mock := newTestRepo(t)

	rows := sqlmock.NewRows(postRowColumns).
		AddRow("post-1", "acme", "Acme", "g1", "Launch", "acme", "reddit", fixedNow, "", "bob",
			"Acme rocks", "", "Thread", "", int64(12), int64(3), int64(0), int64(0),
			"https://reddit.com/r/x/1", "t3_1", nil, nil, nil, "error", nil, "TRANSPORT", false, fixedNow)
	mock.ExpectQuery(`FROM posts\s+WHERE sentiment IS NULL\s+AND sentiment_manual = FALSE`).
		WithArgs(50).
		WillReturnRows(rows)

	posts, err := repo.ListPendingSentiment(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, "post-1", p.ID)
	assert.Equal(t, models.PlatformReddit, p.Platform)
	assert.Equal(t, "Launch", p.GroupName)
	assert.Equal(t, "Thread", p.Content.Title)
	assert.Equal(t, int64(12), p.Metrics.Likes)
	assert.Nil(t, p.Sentiment)
	assert.Equal(t, models.ErrorKindTransport, p.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSentiment(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT sentiment FROM posts WHERE id = \$1 FOR UPDATE`).
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"sentiment"}).AddRow("negative"))
	mock.ExpectExec(`UPDATE posts SET .*sentiment_manual = TRUE`).
		WithArgs("post-1", "positive", 1.0, models.SentimentSourceManual, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sentiment_changes`).
		WithArgs("00000000-0000-0000-0000-000000000001", "post-1", "negative", "positive", "analyst", "sarcasm", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	change, err := repo.OverrideSentiment(context.Background(), "post-1", models.SentimentPositive, "analyst", "sarcasm")
	require.NoError(t, err)
	require.NotNil(t, change.PreviousSentiment)
	assert.Equal(t, models.SentimentNegative, *change.PreviousSentiment)
	assert.Equal(t, models.SentimentPositive, change.NewSentiment)
	assert.Equal(t, fixedNow, change.ChangedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSentiment_PostNotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"sentiment"}))
	mock.ExpectRollback()

	_, err := repo.OverrideSentiment(context.Background(), "missing", models.SentimentNeutral, "analyst", "")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSentiment_RollsBackOnLogFailure(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"sentiment"}).AddRow(nil))
	mock.ExpectExec(`UPDATE posts SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sentiment_changes`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.OverrideSentiment(context.Background(), "post-1", models.SentimentNeutral, "analyst", "")
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSentiment_InvalidLabel(t *testing.T) {
	repo, mock := newTestRepo(t)
	_, err := repo.OverrideSentiment(context.Background(), "post-1", "great", "analyst", "")
	assert.ErrorIs(t, err, ErrInvalidSentiment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPost_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(`FROM posts WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(postRowColumns))

	_, err := repo.GetPost(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestListSentimentChanges(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(`FROM sentiment_changes`).
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "previous_sentiment", "new_sentiment", "actor", "reason", "changed_at"}).
			AddRow("c1", "post-1", nil, "neutral", "a", "", fixedNow).
			AddRow("c2", "post-1", "neutral", "positive", "b", "re-read", fixedNow.Add(time.Hour)))

	changes, err := repo.ListSentimentChanges(context.Background(), "post-1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Nil(t, changes[0].PreviousSentiment)
	assert.Equal(t, models.SentimentNeutral, *changes[1].PreviousSentiment)
	assert.Equal(t, models.SentimentPositive, changes[1].NewSentiment)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23502"}))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($4, $5, $6)", placeholders(3, 3))
}
