package sentiment

import (
	"context"
	"fmt"
	"time"
)

// ProbeGate asks the service's /health endpoint before each call. It is the
// gate used when the scoring service runs outside this process.
type ProbeGate struct {
	Health  HealthChecker
	Timeout time.Duration
}

func (g ProbeGate) Ready(ctx context.Context) error {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health, err := g.Health.Health(probeCtx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("%w: model not loaded", ErrServiceUnavailable)
	}
	return nil
}
