// Package scheduler fires brand runs on each keyword group's polling
// frequency.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spacesedan/brandpulse/internal/models"
)

const DEFAULT_RESYNC_INTERVAL = 5 * time.Minute

type BrandLister interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
}

// Runner is satisfied by *orchestrator.Orchestrator.
type Runner interface {
	RunForBrand(ctx context.Context, brandID string) (models.RunSummary, error)
	RunGroup(ctx context.Context, brandID, groupID string) (models.RunSummary, error)
}

type Options struct {
	// Resync is how often the brand store is re-read to pick up new, changed
	// and removed groups.
	Resync time.Duration
}

// target is one schedulable unit: a keyword group, or a brand without groups.
type target struct {
	brandID string
	groupID string
	spec    string
	paused  bool
}

type entry struct {
	id   cron.EntryID
	spec string
}

type Scheduler struct {
	brands BrandLister
	runner Runner
	opts   Options
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]entry
	targets map[string]target
	runCtx  context.Context
}

func New(brands BrandLister, runner Runner, opts Options) *Scheduler {
	if opts.Resync <= 0 {
		opts.Resync = DEFAULT_RESYNC_INTERVAL
	}
	logger := cronLogger{}
	return &Scheduler{
		brands: brands,
		runner: runner,
		opts:   opts,
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		), cron.WithLogger(logger)),
		entries: make(map[string]entry),
		targets: make(map[string]target),
		runCtx:  context.Background(),
	}
}

// Start registers the current groups, starts the cron loop and keeps the
// entries in sync until ctx is cancelled. It blocks until running jobs have
// finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("[Scheduler] Started",
		slog.Int("entries", s.Len()),
		slog.Duration("resync", s.opts.Resync))

	ticker := time.NewTicker(s.opts.Resync)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping, waiting for running jobs")
			<-s.cron.Stop().Done()
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				slog.Error("[Scheduler] Resync failed, keeping current entries",
					slog.String("error", err.Error()))
			}
		}
	}
}

// Sync reconciles cron entries with the brand store. Running groups get an
// entry at their frequency; groups that were removed or paused lose theirs.
func (s *Scheduler) Sync(ctx context.Context) error {
	brands, err := s.brands.ListBrands(ctx)
	if err != nil {
		return fmt.Errorf("list brands: %w", err)
	}
	desired := desiredTargets(brands)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.targets = desired
	added, removed := 0, 0
	for key, e := range s.entries {
		t, ok := desired[key]
		if ok && !t.paused && t.spec == e.spec {
			continue
		}
		s.cron.Remove(e.id)
		delete(s.entries, key)
		removed++
	}
	for key, t := range desired {
		if t.paused {
			continue
		}
		if _, ok := s.entries[key]; ok {
			continue
		}
		id, err := s.cron.AddFunc(t.spec, s.job(key))
		if err != nil {
			slog.Error("[Scheduler] Failed to schedule",
				slog.String("key", key),
				slog.String("spec", t.spec),
				slog.String("error", err.Error()))
			continue
		}
		s.entries[key] = entry{id: id, spec: t.spec}
		added++
	}

	if added > 0 || removed > 0 {
		slog.Info("[Scheduler] Entries synced",
			slog.Int("added", added),
			slog.Int("removed", removed),
			slog.Int("total", len(s.entries)))
	}
	return nil
}

// job re-reads the target at fire time so a group paused since the last sync
// is skipped.
func (s *Scheduler) job(key string) func() {
	return func() {
		s.mu.Lock()
		t, ok := s.targets[key]
		ctx := s.runCtx
		s.mu.Unlock()

		if !ok || t.paused {
			slog.Info("[Scheduler] Target paused or removed, skipping", slog.String("key", key))
			return
		}
		if ctx.Err() != nil {
			return
		}

		var err error
		if t.groupID == "" {
			_, err = s.runner.RunForBrand(ctx, t.brandID)
		} else {
			_, err = s.runner.RunGroup(ctx, t.brandID, t.groupID)
		}
		if err != nil {
			slog.Error("[Scheduler] Run failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// Len is the number of active cron entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Specs returns the schedule of every active entry keyed by guard key.
func (s *Scheduler) Specs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for key, e := range s.entries {
		out[key] = e.spec
	}
	return out
}

func desiredTargets(brands []models.Brand) map[string]target {
	out := make(map[string]target)
	for _, b := range brands {
		if len(b.Groups) == 0 {
			exec := models.Execution{BrandID: b.ID}
			out[exec.GuardKey()] = target{
				brandID: b.ID,
				spec:    everySpec(models.Frequency1h),
			}
			continue
		}
		for _, g := range b.Groups {
			exec := models.Execution{BrandID: b.ID, GroupID: g.ID}
			out[exec.GuardKey()] = target{
				brandID: b.ID,
				groupID: g.ID,
				spec:    everySpec(g.Frequency),
				paused:  g.IsPaused(),
			}
		}
	}
	return out
}

func everySpec(f models.Frequency) string {
	return "@every " + f.Interval().String()
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("[Scheduler] cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("[Scheduler] cron: "+msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
