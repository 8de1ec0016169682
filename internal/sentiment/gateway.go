package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/utils"
	"golang.org/x/sync/errgroup"
)

const defaultSource = "service"

// Analyzer is the remote /analyze call. *clients.SentimentClient satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error)
}

// ServiceGate reports whether the scoring service can take requests. A
// non-nil error puts the whole call in degraded mode.
type ServiceGate interface {
	Ready(ctx context.Context) error
}

type GatewayConfig struct {
	BatchSize      int
	Concurrency    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = 8 * c.RetryBaseDelay
	}
	return c
}

type PostError struct {
	PostID   string           `json:"postId"`
	Platform models.Platform  `json:"platform"`
	Keyword  string           `json:"keyword"`
	Error    models.ErrorKind `json:"error"`
	Message  string           `json:"message"`
}

// AnalyzeResponse has one result per input post, in input order.
type AnalyzeResponse struct {
	Results    []models.AnnotatedPost `json:"results"`
	Total      int                    `json:"total"`
	Successful int                    `json:"successful"`
	Failed     int                    `json:"failed"`
	Errors     []PostError            `json:"errors"`
}

type Gateway struct {
	client Analyzer
	gate   ServiceGate
	cfg    GatewayConfig
	policy retrypolicy.RetryPolicy[models.AnalyzeResponse]
	now    func() time.Time
}

// NewGateway wires the scoring client. gate may be nil when the service is
// managed outside this process.
func NewGateway(client Analyzer, gate ServiceGate, cfg GatewayConfig) *Gateway {
	cfg = cfg.withDefaults()
	policy := retrypolicy.NewBuilder[models.AnalyzeResponse]().
		HandleIf(func(_ models.AnalyzeResponse, err error) bool {
			return IsRetryable(err)
		}).
		WithBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		Build()

	return &Gateway{
		client: client,
		gate:   gate,
		cfg:    cfg,
		policy: policy,
		now:    time.Now,
	}
}

// annotation is the per-post working slot filled by exactly one worker.
type annotation struct {
	outcome models.SentimentOutcome
	message string
	set     bool
}

// Analyze annotates every post. It never fails as a whole: dependency
// problems surface as per-post error outcomes.
func (g *Gateway) Analyze(ctx context.Context, posts []models.CandidatePost) AnalyzeResponse {
	slots := make([]annotation, len(posts))
	texts := make([]string, len(posts))
	pending := make([]int, 0, len(posts))

	for i, p := range posts {
		texts[i] = ExtractText(p.Content)
		if texts[i] == "" {
			slots[i] = annotation{
				outcome: models.FailedOutcome(models.ErrorKindNoText),
				message: "no analyzable text",
				set:     true,
			}
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		if err := g.ready(ctx); err != nil {
			slog.Warn("[Gateway] Scoring service unavailable, annotating in degraded mode",
				slog.Int("posts", len(pending)),
				slog.String("error", err.Error()))
			for _, idx := range pending {
				slots[idx] = annotation{
					outcome: models.FailedOutcome(models.ErrorKindNoService),
					message: err.Error(),
					set:     true,
				}
			}
		} else {
			g.annotatePending(ctx, posts, texts, pending, slots)
		}
	}

	return g.buildResponse(posts, slots)
}

func (g *Gateway) ready(ctx context.Context) error {
	if g.gate == nil {
		return nil
	}
	return g.gate.Ready(ctx)
}

func (g *Gateway) annotatePending(ctx context.Context, posts []models.CandidatePost, texts []string, pending []int, slots []annotation) {
	batches := utils.Chunk(pending, g.cfg.BatchSize)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for n, batch := range batches {
		eg.Go(func() error {
			g.annotateBatch(egCtx, n, posts, texts, batch, slots)
			return nil
		})
	}
	_ = eg.Wait()

	slog.Info("[Gateway] Sub-batches complete",
		slog.Int("posts", len(pending)),
		slog.Int("batches", len(batches)),
		slog.Int("concurrency", g.cfg.Concurrency))
}

// annotateBatch writes only to slots[idx] for idx in batch. Batches are
// disjoint so workers never share a slot.
func (g *Gateway) annotateBatch(ctx context.Context, n int, posts []models.CandidatePost, texts []string, batch []int, slots []annotation) {
	req := models.AnalyzeRequest{Posts: make([]models.AnalyzeRequestPost, len(batch))}
	for i, idx := range batch {
		p := posts[idx]
		req.Posts[i] = models.AnalyzeRequestPost{
			ID:        strconv.Itoa(idx),
			Text:      texts[idx],
			Platform:  string(p.Platform),
			Keyword:   p.Keyword,
			BrandName: p.BrandName,
		}
	}

	var lastErr *AnnotationError
	attempts := 0
	resp, err := failsafe.With(g.policy).WithContext(ctx).Get(func() (models.AnalyzeResponse, error) {
		attempts++
		resp, err := g.client.Analyze(ctx, req)
		if err != nil {
			lastErr = Classify(err)
			slog.Warn("[Gateway] Analyze call failed",
				slog.Int("batch", n),
				slog.Int("attempt", attempts),
				slog.String("kind", string(lastErr.Kind)),
				slog.String("error", err.Error()))
			return resp, lastErr
		}
		lastErr = nil
		return resp, nil
	})
	if err != nil {
		failure := lastErr
		if failure == nil {
			failure = Classify(err)
		}
		slog.Error("[Gateway] Sub-batch failed",
			slog.Int("batch", n),
			slog.Int("posts", len(batch)),
			slog.Int("attempts", attempts),
			slog.String("kind", string(failure.Kind)))
		for _, idx := range batch {
			slots[idx] = annotation{
				outcome: models.FailedOutcome(failure.Kind),
				message: failure.Error(),
				set:     true,
			}
		}
		return
	}

	byID := make(map[string]models.AnalyzeResult, len(resp.Results))
	for _, r := range resp.Results {
		if r.ID != "" {
			byID[r.ID] = r
		}
	}
	positional := len(byID) == 0 && len(resp.Results) == len(batch)

	for i, idx := range batch {
		var (
			result models.AnalyzeResult
			ok     bool
		)
		if positional {
			result, ok = resp.Results[i], true
		} else {
			result, ok = byID[strconv.Itoa(idx)]
		}
		if !ok {
			slots[idx] = annotation{
				outcome: models.FailedOutcome(models.ErrorKindValidation),
				message: "scoring service returned no result for post",
				set:     true,
			}
			continue
		}
		outcome, err := g.toOutcome(result)
		if err != nil {
			slots[idx] = annotation{
				outcome: models.FailedOutcome(models.ErrorKindValidation),
				message: err.Error(),
				set:     true,
			}
			continue
		}
		slots[idx] = annotation{outcome: outcome, set: true}
	}
}

func (g *Gateway) toOutcome(r models.AnalyzeResult) (models.SentimentOutcome, error) {
	label := models.SentimentLabel(strings.ToLower(strings.TrimSpace(r.Sentiment)))
	if !label.Valid() {
		return models.SentimentOutcome{}, fmt.Errorf("invalid sentiment label %q", r.Sentiment)
	}
	if r.SentimentScore < 0 || r.SentimentScore > 1 {
		return models.SentimentOutcome{}, fmt.Errorf("sentiment score %v out of range", r.SentimentScore)
	}
	confidence := min(max(r.SentimentConfidence, 0), 1)

	analyzedAt := g.now().UTC()
	if t, err := time.Parse(time.RFC3339, r.SentimentAnalyzedAt); err == nil {
		analyzedAt = t.UTC()
	}
	source := r.SentimentSource
	if source == "" {
		source = defaultSource
	}
	return models.LabeledOutcome(label, r.SentimentScore, confidence, source, analyzedAt), nil
}

func (g *Gateway) buildResponse(posts []models.CandidatePost, slots []annotation) AnalyzeResponse {
	resp := AnalyzeResponse{
		Results: make([]models.AnnotatedPost, len(posts)),
		Total:   len(posts),
	}
	for i, p := range posts {
		slot := slots[i]
		if !slot.set {
			slot = annotation{
				outcome: models.FailedOutcome(models.ErrorKindTransport),
				message: "post was not annotated",
			}
		}
		resp.Results[i] = models.AnnotatedPost{CandidatePost: p, SentimentOutcome: slot.outcome}
		if slot.outcome.Succeeded() {
			resp.Successful++
			continue
		}
		resp.Failed++
		resp.Errors = append(resp.Errors, PostError{
			PostID:   p.Identifier(),
			Platform: p.Platform,
			Keyword:  p.Keyword,
			Error:    slot.outcome.Error,
			Message:  slot.message,
		})
	}
	return resp
}
