package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spacesedan/brandpulse/internal/sentiment"
)

const HEALTHCHECK_TIMER = 15 * time.Second

// ScoringHealth is satisfied by *sentiment.Supervisor.
type ScoringHealth interface {
	CheckHealth(ctx context.Context) sentiment.State
}

// MonitorScoringHealth probes the supervised scoring service every interval
// until ctx is done. healthy may be nil.
func MonitorScoringHealth(ctx context.Context, sup ScoringHealth, interval time.Duration, metrics *Metrics, healthy *atomic.Bool) {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := sentiment.State(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := sup.CheckHealth(ctx)
			metrics.SetSupervisorState(int(state))
			if healthy != nil {
				healthy.Store(state == sentiment.StateHealthy)
			}
			if state != last && state != sentiment.StateHealthy {
				slog.Warn("[HealthCheck] Scoring service is unhealthy",
					slog.String("state", state.String()))
			}
			last = state
		}
	}
}
