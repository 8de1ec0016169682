// Package orchestrator turns a brand's configuration into one collection run:
// resolve executions, fan out fetches, annotate the whole batch once and
// persist it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/brandpulse/internal/db"
	"github.com/spacesedan/brandpulse/internal/fetchers"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/monitoring"
	"github.com/spacesedan/brandpulse/internal/sentiment"
	"github.com/spacesedan/brandpulse/internal/utils"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingBrand  = errors.New("brand identifier is required")
	ErrBrandNotFound = models.ErrBrandNotFound
	ErrGroupNotFound = errors.New("keyword group not found")
)

const (
	DEFAULT_WINDOW     = time.Hour
	DEFAULT_END_OFFSET = 10 * time.Second
)

type BrandStore interface {
	GetBrand(ctx context.Context, brandID string) (models.Brand, error)
}

type FetcherSource interface {
	For(p models.Platform) (fetchers.Fetcher, bool)
}

type Annotator interface {
	Analyze(ctx context.Context, posts []models.CandidatePost) sentiment.AnalyzeResponse
}

type PostStore interface {
	SaveBatch(ctx context.Context, posts []models.AnnotatedPost) (db.SaveResult, error)
}

// Publisher announces newly stored posts.
type Publisher interface {
	PublishMentions(ctx context.Context, posts []models.StoredPost) error
}

// Recorder keeps a history of run summaries.
type Recorder interface {
	Record(ctx context.Context, summary models.RunSummary) error
}

type Config struct {
	// Window is how far back each run searches. The window ends EndOffset
	// before now so eventually consistent upstream indexes can settle.
	Window    time.Duration
	EndOffset time.Duration
	// PlatformConcurrency caps platforms fetched at once. Zero means all.
	PlatformConcurrency int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DEFAULT_WINDOW
	}
	if c.EndOffset < 0 {
		c.EndOffset = 0
	} else if c.EndOffset == 0 {
		c.EndOffset = DEFAULT_END_OFFSET
	}
	return c
}

// Dependencies are the run's collaborators. Brands, Fetchers, Annotator and
// Posts are required; the rest may be nil.
type Dependencies struct {
	Brands    BrandStore
	Fetchers  FetcherSource
	Annotator Annotator
	Posts     PostStore

	Guard     RunGuard
	Seen      SeenFilter
	Publisher Publisher
	Recorder  Recorder
	Metrics   *monitoring.Metrics
}

type Orchestrator struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time
}

func New(deps Dependencies, cfg Config) *Orchestrator {
	if deps.Guard == nil {
		deps.Guard = NewLocalGuard()
	}
	return &Orchestrator{deps: deps, cfg: cfg.withDefaults(), now: time.Now}
}

// RunForBrand runs every active execution of a brand. It only fails for
// invalid input; partial failures are reported through the summary counts.
func (o *Orchestrator) RunForBrand(ctx context.Context, brandID string) (models.RunSummary, error) {
	brand, err := o.loadBrand(ctx, brandID)
	if err != nil {
		return models.RunSummary{}, err
	}
	return o.run(ctx, brand, "", ResolveExecutions(brand)), nil
}

// RunGroup runs a single keyword group. A paused group yields an empty run.
func (o *Orchestrator) RunGroup(ctx context.Context, brandID, groupID string) (models.RunSummary, error) {
	brand, err := o.loadBrand(ctx, brandID)
	if err != nil {
		return models.RunSummary{}, err
	}

	found := false
	for _, g := range brand.Groups {
		if g.ID == groupID {
			found = true
			break
		}
	}
	if !found {
		return models.RunSummary{}, fmt.Errorf("%w: %s/%s", ErrGroupNotFound, brandID, groupID)
	}

	var execs []models.Execution
	for _, e := range ResolveExecutions(brand) {
		if e.GroupID == groupID {
			execs = append(execs, e)
		}
	}
	return o.run(ctx, brand, groupID, execs), nil
}

func (o *Orchestrator) loadBrand(ctx context.Context, brandID string) (models.Brand, error) {
	brandID = strings.TrimSpace(brandID)
	if brandID == "" {
		return models.Brand{}, ErrMissingBrand
	}
	brand, err := o.deps.Brands.GetBrand(ctx, brandID)
	if err != nil {
		return models.Brand{}, fmt.Errorf("load brand %s: %w", brandID, err)
	}
	return brand, nil
}

func (o *Orchestrator) run(ctx context.Context, brand models.Brand, groupID string, execs []models.Execution) models.RunSummary {
	summary := models.NewRunSummary(uuid.NewString(), brand.ID)
	summary.GroupID = groupID
	summary.StartedAt = o.now().UTC()
	logger := slog.With(slog.String("run_id", summary.RunID), slog.String("brand", brand.ID))

	active := make([]models.Execution, 0, len(execs))
	for _, e := range execs {
		release, ok, err := o.deps.Guard.Acquire(ctx, e.GuardKey())
		if err != nil {
			logger.Warn("[Orchestrator] Run guard degraded",
				slog.String("key", e.GuardKey()),
				slog.String("error", err.Error()))
		}
		if !ok {
			logger.Info("[Orchestrator] Execution already running, skipping",
				slog.String("key", e.GuardKey()))
			summary.Skipped = append(summary.Skipped, e.GuardKey())
			o.deps.Metrics.IncSkipped()
			continue
		}
		defer release()
		active = append(active, e)
	}

	if len(active) == 0 {
		logger.Info("[Orchestrator] Nothing to do", slog.Int("skipped", len(summary.Skipped)))
		return o.finish(ctx, summary)
	}

	end := summary.StartedAt.Add(-o.cfg.EndOffset)
	start := summary.StartedAt.Add(-o.cfg.Window)

	candidates := o.fetchAll(ctx, logger, active, start, end, &summary)
	summary.Fetched = len(candidates)

	toAnnotate := candidates
	if o.deps.Seen != nil && len(candidates) > 0 {
		toAnnotate = o.deps.Seen.Unseen(ctx, candidates)
		if skipped := len(candidates) - len(toAnnotate); skipped > 0 {
			logger.Info("[Orchestrator] Dropped already stored posts", slog.Int("count", skipped))
			summary.Duplicates += skipped
		}
	}

	if len(toAnnotate) == 0 {
		return o.finish(ctx, summary)
	}

	// one gateway call per run, never per keyword
	annotated := o.deps.Annotator.Analyze(ctx, toAnnotate)
	summary.Analyzed = annotated.Successful
	summary.Failed = annotated.Failed
	o.deps.Metrics.ObserveAnnotations(annotated.Results)

	saved, err := o.deps.Posts.SaveBatch(ctx, annotated.Results)
	if err != nil {
		logger.Error("[Orchestrator] Persistence aborted",
			slog.String("error", err.Error()))
		saved.Errors += len(annotated.Results) - saved.Saved - saved.Duplicates - saved.Errors
	}
	summary.Saved = saved.Saved
	summary.Duplicates += saved.Duplicates
	summary.Errors = saved.Errors
	o.deps.Metrics.ObserveStored(saved.Saved, saved.Duplicates, saved.Errors)

	if len(saved.Inserted) > 0 {
		if o.deps.Seen != nil {
			o.deps.Seen.MarkSeen(ctx, saved.Inserted)
		}
		if o.deps.Publisher != nil {
			if err := o.deps.Publisher.PublishMentions(ctx, saved.Inserted); err != nil {
				logger.Error("[Orchestrator] Failed to publish mentions",
					slog.Int("count", len(saved.Inserted)),
					slog.String("error", err.Error()))
			}
		}
	}

	return o.finish(ctx, summary)
}

// fetchAll runs platforms concurrently and the keywords of one platform in
// sequence.
func (o *Orchestrator) fetchAll(ctx context.Context, logger *slog.Logger, execs []models.Execution, start, end time.Time, summary *models.RunSummary) []models.CandidatePost {
	type job struct {
		exec    models.Execution
		keyword string
	}
	var (
		platforms []models.Platform
		jobs      = make(map[models.Platform][]job)
	)
	for _, e := range execs {
		for _, p := range e.Platforms {
			if _, ok := jobs[p]; !ok {
				platforms = append(platforms, p)
			}
			for _, kw := range e.Keywords {
				jobs[p] = append(jobs[p], job{exec: e, keyword: kw})
			}
		}
	}

	buffer := utils.NewBatchBuffer[models.CandidatePost](len(platforms) * 16)
	counts := make([]int, len(platforms))

	eg, egCtx := errgroup.WithContext(ctx)
	if o.cfg.PlatformConcurrency > 0 {
		eg.SetLimit(o.cfg.PlatformConcurrency)
	}
	for i, p := range platforms {
		eg.Go(func() error {
			fetcher, ok := o.deps.Fetchers.For(p)
			if !ok {
				logger.Warn("[Orchestrator] No fetcher configured for platform",
					slog.String("platform", string(p)))
				return nil
			}
			for _, j := range jobs[p] {
				if egCtx.Err() != nil {
					return nil
				}
				opts := fetchers.FetchOptions{
					Include:   j.exec.IncludeKeywords,
					Exclude:   j.exec.ExcludeKeywords,
					Language:  j.exec.Language,
					Country:   j.exec.Country,
					StartDate: start,
					EndDate:   end,
				}
				posts := o.fetchOne(egCtx, logger, fetcher, p, j.exec, j.keyword, opts)
				counts[i] += len(posts)
				buffer.Add(posts...)
			}
			return nil
		})
	}
	_ = eg.Wait()

	for i, p := range platforms {
		summary.PerPlatform[p] = counts[i]
		o.deps.Metrics.ObserveFetched(p, counts[i])
	}
	buffer.LogBatchProcessing("candidates")
	return buffer.GetAndClear()
}

// fetchOne tags every returned post with its origin. A panicking adapter is
// logged and treated as an empty result so the next keyword still runs.
func (o *Orchestrator) fetchOne(ctx context.Context, logger *slog.Logger, fetcher fetchers.Fetcher, platform models.Platform, exec models.Execution, keyword string, opts fetchers.FetchOptions) (posts []models.CandidatePost) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Orchestrator] Fetcher failed",
				slog.String("group", exec.GroupID),
				slog.String("platform", string(platform)),
				slog.String("keyword", keyword),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			posts = nil
		}
	}()

	posts = fetcher.Fetch(ctx, keyword, opts)
	for i := range posts {
		posts[i].Keyword = keyword
		posts[i].Platform = platform
		posts[i].BrandID = exec.BrandID
		posts[i].BrandName = exec.BrandName
		posts[i].GroupID = exec.GroupID
		posts[i].GroupName = exec.GroupName
	}
	logger.Debug("[Orchestrator] Fetched",
		slog.String("group", exec.GroupID),
		slog.String("platform", string(platform)),
		slog.String("keyword", keyword),
		slog.Int("count", len(posts)))
	return posts
}

func (o *Orchestrator) finish(ctx context.Context, summary models.RunSummary) models.RunSummary {
	summary.FinishedAt = o.now().UTC()
	o.deps.Metrics.ObserveRun(summary.BrandID, summary.FinishedAt.Sub(summary.StartedAt))

	if o.deps.Recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.deps.Recorder.Record(recordCtx, summary); err != nil {
			slog.Warn("[Orchestrator] Failed to record run",
				slog.String("run_id", summary.RunID),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[Orchestrator] Run complete",
		slog.String("run_id", summary.RunID),
		slog.String("brand", summary.BrandID),
		slog.Int("fetched", summary.Fetched),
		slog.Int("analyzed", summary.Analyzed),
		slog.Int("failed", summary.Failed),
		slog.Int("saved", summary.Saved),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("errors", summary.Errors),
		slog.Int("skipped", len(summary.Skipped)))
	return summary
}
