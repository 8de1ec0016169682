package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/utils"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrInvalidSentiment = errors.New("invalid sentiment label")
)

const (
	// 27 bind parameters per row keeps a chunk well under the 65535 limit
	MAX_INSERT_ROWS = 500

	uniqueViolation = "23505"
)

var insertColumns = []string{
	"id", "brand_id", "brand_name", "group_id", "group_name",
	"keyword", "platform", "created_at", "author_id", "author_name",
	"content_text", "content_description", "content_title", "media_url",
	"likes", "comments", "shares", "views",
	"source_url", "external_id",
	"sentiment", "sentiment_score", "sentiment_confidence", "sentiment_source",
	"sentiment_analyzed_at", "sentiment_error", "fetched_at",
}

const onConflict = `
        ON CONFLICT (source_url, platform) WHERE source_url IS NOT NULL DO NOTHING
        RETURNING id`

const selectPostColumns = `id, brand_id, brand_name, COALESCE(group_id, ''), COALESCE(group_name, ''),
        keyword, platform, created_at, COALESCE(author_id, ''), author_name,
        content_text, COALESCE(content_description, ''), COALESCE(content_title, ''), COALESCE(media_url, ''),
        likes, comments, shares, views,
        COALESCE(source_url, ''), COALESCE(external_id, ''),
        sentiment, sentiment_score, sentiment_confidence, sentiment_source,
        sentiment_analyzed_at, COALESCE(sentiment_error, ''), sentiment_manual, fetched_at`

// SaveResult counts what happened to a batch. Saved + Duplicates + Errors
// always equals the batch length.
type SaveResult struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
	// Inserted holds the rows that were actually written, with their ids.
	Inserted []models.StoredPost `json:"-"`
}

type PostRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db, now: time.Now, newID: uuid.NewString}
}

// SaveBatch inserts annotated posts idempotently. Duplicates on
// (source_url, platform) are counted, not reported as errors. When a bulk
// statement fails outright the chunk is retried row by row so one bad record
// cannot block the rest.
func (r *PostRepository) SaveBatch(ctx context.Context, posts []models.AnnotatedPost) (SaveResult, error) {
	var result SaveResult
	if len(posts) == 0 {
		return result, nil
	}

	fetchedAt := r.now().UTC()
	stored := make([]models.StoredPost, len(posts))
	for i, p := range posts {
		stored[i] = models.StoredPost{
			ID:            r.newID(),
			AnnotatedPost: p,
			FetchedAt:     fetchedAt,
		}
	}

	for _, chunk := range utils.Chunk(stored, MAX_INSERT_ROWS) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		inserted, err := r.insertBulk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			slog.Warn("[PostRepository] Bulk insert failed, falling back to row inserts",
				slog.Int("rows", len(chunk)),
				slog.String("error", err.Error()))
			r.insertEach(ctx, chunk, &result)
			continue
		}

		result.Saved += len(inserted)
		result.Duplicates += len(chunk) - len(inserted)
		result.Inserted = append(result.Inserted, inserted...)
	}

	slog.Info("[PostRepository] Batch saved",
		slog.Int("posts", len(posts)),
		slog.Int("saved", result.Saved),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("errors", result.Errors))
	return result, nil
}

func (r *PostRepository) insertBulk(ctx context.Context, chunk []models.StoredPost) ([]models.StoredPost, error) {
	query := `INSERT INTO posts (` + strings.Join(insertColumns, ", ") + `) VALUES `

	values := make([]any, 0, len(chunk)*len(insertColumns))
	placeholderParts := make([]string, 0, len(chunk))
	for i, p := range chunk {
		placeholderParts = append(placeholderParts, placeholders(i*len(insertColumns), len(insertColumns)))
		values = append(values, insertArgs(p)...)
	}
	query += strings.Join(placeholderParts, ", ") + onConflict

	rows, err := r.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert posts: %w", err)
	}
	defer rows.Close()

	returned := make(map[string]struct{}, len(chunk))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan inserted id: %w", err)
		}
		returned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inserted ids: %w", err)
	}

	inserted := make([]models.StoredPost, 0, len(returned))
	for _, p := range chunk {
		if _, ok := returned[p.ID]; ok {
			inserted = append(inserted, p)
		}
	}
	return inserted, nil
}

func (r *PostRepository) insertEach(ctx context.Context, chunk []models.StoredPost, result *SaveResult) {
	query := `INSERT INTO posts (` + strings.Join(insertColumns, ", ") + `) VALUES ` +
		placeholders(0, len(insertColumns)) + onConflict

	for _, p := range chunk {
		var id string
		err := r.db.QueryRowContext(ctx, query, insertArgs(p)...).Scan(&id)
		switch {
		case err == nil:
			result.Saved++
			result.Inserted = append(result.Inserted, p)
		case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
			result.Duplicates++
		default:
			result.Errors++
			slog.Error("[PostRepository] Failed to insert post",
				slog.String("platform", string(p.Platform)),
				slog.String("source_url", p.SourceURL),
				slog.String("error", err.Error()))
		}
	}
}

// UpdateSentiment writes an automated outcome. Rows flagged manual are left
// untouched and report false.
func (r *PostRepository) UpdateSentiment(ctx context.Context, postID string, outcome models.SentimentOutcome) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE posts SET
            sentiment = $2,
            sentiment_score = $3,
            sentiment_confidence = $4,
            sentiment_source = $5,
            sentiment_analyzed_at = $6,
            sentiment_error = $7
        WHERE id = $1 AND sentiment_manual = FALSE
    `, postID, nullLabel(outcome.Sentiment), nullFloat(outcome.SentimentScore),
		nullFloat(outcome.SentimentConfidence), outcome.SentimentSource,
		nullTime(outcome.SentimentAnalyzedAt), nullString(string(outcome.Error)))
	if err != nil {
		return false, fmt.Errorf("failed to update sentiment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListPendingSentiment returns stored posts without a label, newest first.
// Manual rows and posts that had no text to analyze are excluded.
func (r *PostRepository) ListPendingSentiment(ctx context.Context, limit int) ([]models.StoredPost, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+selectPostColumns+`
        FROM posts
        WHERE sentiment IS NULL
          AND sentiment_manual = FALSE
          AND (sentiment_error IS NULL OR sentiment_error <> 'NO_TEXT')
        ORDER BY fetched_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending posts: %w", err)
	}
	defer rows.Close()

	var posts []models.StoredPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	return posts, nil
}

// GetPost loads one stored post.
func (r *PostRepository) GetPost(ctx context.Context, postID string) (models.StoredPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectPostColumns+` FROM posts WHERE id = $1`, postID)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredPost{}, ErrPostNotFound
	}
	return p, err
}

// manualScores pins a score to each hand-set label so stored rows keep the
// labeled-with-score shape.
var manualScores = map[models.SentimentLabel]float64{
	models.SentimentPositive: 1.0,
	models.SentimentNeutral:  0.5,
	models.SentimentNegative: 0.0,
}

// OverrideSentiment sets a label by hand, flags the row manual and appends a
// change-log entry, all in one transaction.
func (r *PostRepository) OverrideSentiment(ctx context.Context, postID string, label models.SentimentLabel, actor, reason string) (models.SentimentChange, error) {
	if !label.Valid() {
		return models.SentimentChange{}, fmt.Errorf("%w: %q", ErrInvalidSentiment, label)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SentimentChange{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT sentiment FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SentimentChange{}, ErrPostNotFound
	}
	if err != nil {
		return models.SentimentChange{}, fmt.Errorf("failed to lock post: %w", err)
	}

	now := r.now().UTC()
	if _, err := tx.ExecContext(ctx, `
        UPDATE posts SET
            sentiment = $2,
            sentiment_score = $3,
            sentiment_confidence = 1,
            sentiment_source = $4,
            sentiment_analyzed_at = $5,
            sentiment_error = NULL,
            sentiment_manual = TRUE
        WHERE id = $1
    `, postID, string(label), manualScores[label], models.SentimentSourceManual, now); err != nil {
		return models.SentimentChange{}, fmt.Errorf("failed to update post sentiment: %w", err)
	}

	change := models.SentimentChange{
		ID:           r.newID(),
		PostID:       postID,
		NewSentiment: label,
		Actor:        actor,
		Reason:       reason,
		ChangedAt:    now,
	}
	if previous.Valid {
		prev := models.SentimentLabel(previous.String)
		change.PreviousSentiment = &prev
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO sentiment_changes (id, post_id, previous_sentiment, new_sentiment, actor, reason, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, change.ID, postID, previous, string(label), actor, reason, now); err != nil {
		return models.SentimentChange{}, fmt.Errorf("failed to record sentiment change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.SentimentChange{}, fmt.Errorf("failed to commit override: %w", err)
	}
	return change, nil
}

// ListSentimentChanges returns the change log of one post, oldest first.
func (r *PostRepository) ListSentimentChanges(ctx context.Context, postID string) ([]models.SentimentChange, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, post_id, previous_sentiment, new_sentiment, actor, reason, changed_at
        FROM sentiment_changes
        WHERE post_id = $1
        ORDER BY changed_at ASC
    `, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sentiment changes: %w", err)
	}
	defer rows.Close()

	var changes []models.SentimentChange
	for rows.Next() {
		var (
			c        models.SentimentChange
			previous sql.NullString
			next     string
		)
		if err := rows.Scan(&c.ID, &c.PostID, &previous, &next, &c.Actor, &c.Reason, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment change: %w", err)
		}
		c.NewSentiment = models.SentimentLabel(next)
		if previous.Valid {
			prev := models.SentimentLabel(previous.String)
			c.PreviousSentiment = &prev
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment changes: %w", err)
	}
	return changes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (models.StoredPost, error) {
	var (
		p          models.StoredPost
		platform   string
		sentiment  sql.NullString
		score      sql.NullFloat64
		confidence sql.NullFloat64
		analyzedAt sql.NullTime
		errKind    string
	)
	err := row.Scan(
		&p.ID, &p.BrandID, &p.BrandName, &p.GroupID, &p.GroupName,
		&p.Keyword, &platform, &p.CreatedAt, &p.Author.ID, &p.Author.Name,
		&p.Content.Text, &p.Content.Description, &p.Content.Title, &p.Content.MediaURL,
		&p.Metrics.Likes, &p.Metrics.Comments, &p.Metrics.Shares, &p.Metrics.Views,
		&p.SourceURL, &p.ExternalID,
		&sentiment, &score, &confidence, &p.SentimentSource,
		&analyzedAt, &errKind, &p.SentimentManual, &p.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan post row: %w", err)
	}

	p.Platform = models.Platform(platform)
	p.Error = models.ErrorKind(errKind)
	if sentiment.Valid {
		label := models.SentimentLabel(sentiment.String)
		p.Sentiment = &label
	}
	if score.Valid {
		p.SentimentScore = &score.Float64
	}
	if confidence.Valid {
		p.SentimentConfidence = &confidence.Float64
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time.UTC()
		p.SentimentAnalyzedAt = &t
	}
	return p, nil
}

func insertArgs(p models.StoredPost) []any {
	return []any{
		p.ID, p.BrandID, p.BrandName, nullString(p.GroupID), nullString(p.GroupName),
		p.Keyword, string(p.Platform), p.CreatedAt, nullString(p.Author.ID), p.Author.Name,
		p.Content.Text, nullString(p.Content.Description), nullString(p.Content.Title), nullString(p.Content.MediaURL),
		p.Metrics.Likes, p.Metrics.Comments, p.Metrics.Shares, p.Metrics.Views,
		nullString(p.SourceURL), nullString(p.ExternalID),
		nullLabel(p.Sentiment), nullFloat(p.SentimentScore), nullFloat(p.SentimentConfidence), p.SentimentSource,
		nullTime(p.SentimentAnalyzedAt), nullString(string(p.Error)), p.FetchedAt,
	}
}

func placeholders(offset, n int) string {
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("$%d", offset+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullLabel(l *models.SentimentLabel) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*l), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
