package sentiment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/brandpulse/internal/models"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateHealthy
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

var (
	ErrStartupTimeout     = errors.New("scoring service did not become healthy before the startup timeout")
	ErrExitedDuringStart  = errors.New("scoring service exited during startup")
	ErrServiceUnavailable = errors.New("scoring service unavailable")
)

// HealthChecker probes GET /health. *clients.SentimentClient satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) (models.HealthResponse, error)
}

type SupervisorConfig struct {
	Command string
	Args    []string
	// Env is appended to the parent environment.
	Env []string
	Dir string
	// ReadyPattern matched against any output line marks the service ready.
	ReadyPattern   *regexp.Regexp
	StartupTimeout time.Duration
	ProbeInterval  time.Duration
	MaxRestarts    int
	RestartBackoff time.Duration
	StopTimeout    time.Duration
	// OnStateChange is called with every new state. It must not call back
	// into the Supervisor.
	OnStateChange func(State)
}

func (c SupervisorConfig) withDefaults() SupervisorConfig {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 60 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = time.Second
	}
	if c.MaxRestarts < 0 {
		c.MaxRestarts = 0
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = 5 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	return c
}

// Supervisor owns the scoring service child process. Start and Stop are
// idempotent and safe to call from several goroutines.
type Supervisor struct {
	cfg    SupervisorConfig
	health HealthChecker

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	done     chan struct{}
	stopCh   chan struct{}
	stopping bool
	restarts int

	launches atomic.Int32
}

func NewSupervisor(cfg SupervisorConfig, health HealthChecker) *Supervisor {
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		health: health,
		state:  StateStopped,
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Start spawns the service and blocks until it is healthy or the startup
// timeout passes. Calling Start on a running supervisor is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.stopping = false
	s.restarts = 0
	s.stopCh = make(chan struct{})
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	if err := s.launch(ctx); err != nil {
		s.mu.Lock()
		if !s.stopping {
			s.setStateLocked(StateStopped)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop terminates the child and disables restarts.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping || (s.state == StateStopped && s.cmd == nil) {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	if s.stopCh != nil {
		close(s.stopCh)
	}
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	slog.Info("[Supervisor] Stopping scoring service")
	err := terminate(ctx, cmd, done, s.cfg.StopTimeout)

	s.mu.Lock()
	s.cmd = nil
	s.done = nil
	s.setStateLocked(StateStopped)
	s.mu.Unlock()
	return err
}

// Ready implements ServiceGate.
func (s *Supervisor) Ready(ctx context.Context) error {
	state := s.State()
	if state == StateHealthy {
		return nil
	}
	return fmt.Errorf("%w: supervisor is %s", ErrServiceUnavailable, state)
}

// CheckHealth probes a running service and flips between healthy and
// degraded. It returns the resulting state.
func (s *Supervisor) CheckHealth(ctx context.Context) State {
	state := s.State()
	if s.health == nil || (state != StateHealthy && state != StateDegraded) {
		return state
	}

	err := s.probe(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateHealthy && s.state != StateDegraded {
		return s.state
	}
	switch {
	case err != nil && s.state == StateHealthy:
		slog.Warn("[Supervisor] Scoring service health check failed",
			slog.String("error", err.Error()))
		s.setStateLocked(StateDegraded)
	case err == nil && s.state == StateDegraded:
		slog.Info("[Supervisor] Scoring service recovered")
		s.setStateLocked(StateHealthy)
	}
	return s.state
}

func (s *Supervisor) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := s.health.Health(probeCtx)
	if err != nil {
		return err
	}
	if !health.ModelLoaded {
		return fmt.Errorf("model not loaded (status %q)", health.Status)
	}
	return nil
}

func (s *Supervisor) launch(ctx context.Context) error {
	if s.cfg.Command == "" {
		return errors.New("no scoring service command configured")
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	cmd.Dir = s.cfg.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start scoring service: %w", err)
	}
	s.launches.Add(1)

	readyCh := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(readyCh) }) }

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.done = done
	stopCh := s.stopCh
	s.mu.Unlock()

	slog.Info("[Supervisor] Scoring service spawned",
		slog.String("command", s.cfg.Command),
		slog.Int("pid", cmd.Process.Pid))

	var readers sync.WaitGroup
	readers.Add(2)
	go s.stream(&readers, stdout, "stdout", markReady)
	go s.stream(&readers, stderr, "stderr", markReady)

	go func() {
		readers.Wait()
		waitErr := cmd.Wait()
		close(done)
		s.handleExit(cmd, waitErr)
	}()

	if err := s.awaitReady(ctx, readyCh, done, stopCh); err != nil {
		slog.Error("[Supervisor] Scoring service failed to start",
			slog.String("error", err.Error()))
		_ = terminate(context.Background(), cmd, done, s.cfg.StopTimeout)
		return err
	}

	s.mu.Lock()
	if s.cmd != cmd {
		s.mu.Unlock()
		return ErrExitedDuringStart
	}
	if s.stopping {
		s.mu.Unlock()
		_ = terminate(context.Background(), cmd, done, s.cfg.StopTimeout)
		return ErrServiceUnavailable
	}
	s.setStateLocked(StateHealthy)
	s.mu.Unlock()

	slog.Info("[Supervisor] Scoring service healthy",
		slog.Int("pid", cmd.Process.Pid))
	return nil
}

func (s *Supervisor) awaitReady(ctx context.Context, readyCh, done, stopCh <-chan struct{}) error {
	timer := time.NewTimer(s.cfg.StartupTimeout)
	defer timer.Stop()

	var probeC <-chan time.Time
	if s.health != nil {
		ticker := time.NewTicker(s.cfg.ProbeInterval)
		defer ticker.Stop()
		probeC = ticker.C
	}

	for {
		select {
		case <-readyCh:
			return nil
		case <-done:
			return ErrExitedDuringStart
		case <-timer.C:
			return ErrStartupTimeout
		case <-stopCh:
			return ErrServiceUnavailable
		case <-ctx.Done():
			return ctx.Err()
		case <-probeC:
			if s.probe(ctx) == nil {
				return nil
			}
		}
	}
}

func (s *Supervisor) stream(wg *sync.WaitGroup, r io.Reader, name string, markReady func()) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Info("[SentimentService] "+line, slog.String("stream", name))
		if s.cfg.ReadyPattern != nil && s.cfg.ReadyPattern.MatchString(line) {
			markReady()
		}
	}
}

func (s *Supervisor) handleExit(cmd *exec.Cmd, waitErr error) {
	s.mu.Lock()
	if s.cmd != cmd {
		s.mu.Unlock()
		return
	}
	s.cmd = nil
	s.done = nil
	if s.stopping || s.state == StateStarting {
		// Stop or the pending launch owns the transition
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	attrs := []any{slog.Int("pid", cmd.Process.Pid)}
	if waitErr != nil {
		attrs = append(attrs, slog.String("error", waitErr.Error()))
	}
	slog.Warn("[Supervisor] Scoring service exited unexpectedly", attrs...)
	go s.restartLoop()
}

func (s *Supervisor) restartLoop() {
	for {
		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			return
		}
		if s.restarts >= s.cfg.MaxRestarts {
			slog.Error("[Supervisor] Restart limit reached, giving up",
				slog.Int("restarts", s.restarts))
			s.setStateLocked(StateStopped)
			s.mu.Unlock()
			return
		}
		s.restarts++
		attempt := s.restarts
		stopCh := s.stopCh
		s.setStateLocked(StateStarting)
		s.mu.Unlock()

		slog.Info("[Supervisor] Restarting scoring service",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", s.cfg.RestartBackoff))

		select {
		case <-time.After(s.cfg.RestartBackoff):
		case <-stopCh:
			return
		}

		if err := s.launch(context.Background()); err == nil {
			return
		}
	}
}

func terminate(ctx context.Context, cmd *exec.Cmd, done <-chan struct{}, timeout time.Duration) error {
	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	slog.Warn("[Supervisor] Scoring service ignored SIGTERM, killing",
		slog.Int("pid", cmd.Process.Pid))
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-done
	return nil
}

func (s *Supervisor) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(next)
	}
}
