// Package app wires configuration into the collector's dependencies. The
// collector daemon and mentionctl share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spacesedan/brandpulse/config"
	"github.com/spacesedan/brandpulse/internal/brands"
	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/clients/kafka_client"
	"github.com/spacesedan/brandpulse/internal/db"
	"github.com/spacesedan/brandpulse/internal/fetchers"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/monitoring"
	"github.com/spacesedan/brandpulse/internal/orchestrator"
	"github.com/spacesedan/brandpulse/internal/sentiment"
)

const KAFKA_INIT_ATTEMPTS = 5

// BrandSource is satisfied by both the database repository and the YAML
// file store.
type BrandSource interface {
	GetBrand(ctx context.Context, brandID string) (models.Brand, error)
	ListBrands(ctx context.Context) ([]models.Brand, error)
}

type Options struct {
	// Registerer receives the pipeline metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Supervise spawns the scoring service when a command is configured.
	Supervise bool
}

type App struct {
	Config config.Config

	Postgres *clients.Postgres
	Valkey   *clients.ValkeyClient
	Producer *kafka_client.Producer

	Metrics    *monitoring.Metrics
	Brands     BrandSource
	Posts      *db.PostRepository
	Ledger     *db.RunLedger
	Scoring    *clients.SentimentClient
	Supervisor *sentiment.Supervisor
	Gateway    *sentiment.Gateway

	Orchestrator *orchestrator.Orchestrator
}

// Bootstrap connects every configured dependency. Postgres is required;
// Valkey, Kafka and the run ledger are optional and skipped when
// unconfigured or unreachable.
func Bootstrap(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}
	if opts.Registerer != nil {
		a.Metrics = monitoring.NewMetrics(opts.Registerer)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pg, err := clients.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.Postgres = pg
	a.Posts = db.NewPostRepository(pg.DB)

	if cfg.BrandsFile != "" {
		store, err := brands.NewFileStore(cfg.BrandsFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load brands file: %w", err)
		}
		a.Brands = store
	} else {
		a.Brands = db.NewBrandRepository(pg.DB)
	}

	if cfg.ValkeyAddress != "" {
		vc, err := clients.NewValkeyClient(ctx, clients.ValkeyOptions{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
		})
		if err != nil {
			slog.Warn("[App] Valkey unavailable, running without seen cache or shared locks",
				slog.String("error", err.Error()))
		} else {
			a.Valkey = vc
		}
	}

	if cfg.KafkaBroker != "" {
		a.Producer = connectKafka(ctx, cfg)
	}

	if cfg.RunLedgerTable != "" {
		ddb, err := clients.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			slog.Warn("[App] Run ledger disabled", slog.String("error", err.Error()))
		} else {
			a.Ledger = db.NewRunLedger(ddb, cfg.RunLedgerTable)
		}
	}

	a.Scoring = clients.NewSentimentClient(cfg.Sentiment.ServiceURL, cfg.Sentiment.Timeout)

	var gate sentiment.ServiceGate = sentiment.ProbeGate{Health: a.Scoring}
	if opts.Supervise && cfg.Supervisor.Command != "" {
		sup, err := newSupervisor(cfg, a.Scoring, a.Metrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Supervisor = sup
		gate = sup
	}

	a.Gateway = sentiment.NewGateway(a.Scoring, gate, sentiment.GatewayConfig{
		BatchSize:   cfg.Sentiment.BatchSize,
		Concurrency: cfg.Sentiment.Concurrency,
		MaxRetries:  cfg.Sentiment.MaxRetries,
	})

	a.Orchestrator = orchestrator.New(a.dependencies(ctx), orchestrator.Config{Window: cfg.RunWindow})
	return a, nil
}

// dependencies only sets optional collaborators that exist, so no interface
// field holds a typed nil.
func (a *App) dependencies(ctx context.Context) orchestrator.Dependencies {
	deps := orchestrator.Dependencies{
		Brands:    a.Brands,
		Fetchers:  fetchers.NewRegistry(ctx, a.Config.Platforms),
		Annotator: a.Gateway,
		Posts:     a.Posts,
		Metrics:   a.Metrics,
	}
	if a.Valkey != nil {
		deps.Guard = orchestrator.NewValkeyGuard(a.Valkey, a.Config.RunLockTTL)
		deps.Seen = orchestrator.NewValkeySeenFilter(a.Valkey)
	}
	if a.Producer != nil {
		deps.Publisher = a.Producer
	}
	if a.Ledger != nil {
		deps.Recorder = a.Ledger
	}
	return deps
}

func connectKafka(ctx context.Context, cfg config.Config) *kafka_client.Producer {
	kcfg := kafka_client.KafkaConfig{Broker: cfg.KafkaBroker, Topic: cfg.KafkaMentionsTopic}
	for attempt := 1; attempt <= KAFKA_INIT_ATTEMPTS; attempt++ {
		p, err := kafka_client.NewProducer(ctx, kcfg)
		if err == nil {
			return p
		}
		slog.Warn("[App] Kafka init failed, retrying...",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
	slog.Error("[App] Kafka unavailable, mentions will not be published")
	return nil
}

func newSupervisor(cfg config.Config, health sentiment.HealthChecker, metrics *monitoring.Metrics) (*sentiment.Supervisor, error) {
	pattern, err := regexp.Compile(cfg.Supervisor.ReadyPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid SENTIMENT_READY_PATTERN: %w", err)
	}
	fields := strings.Fields(cfg.Supervisor.Command)
	if len(fields) == 0 {
		return nil, errors.New("SENTIMENT_SERVICE_CMD is blank")
	}

	var env []string
	if port := servicePort(cfg.Sentiment.ServiceURL); port != "" {
		env = append(env, "PORT="+port)
	}

	return sentiment.NewSupervisor(sentiment.SupervisorConfig{
		Command:        fields[0],
		Args:           fields[1:],
		Env:            env,
		ReadyPattern:   pattern,
		StartupTimeout: cfg.Supervisor.StartupTimeout,
		MaxRestarts:    cfg.Supervisor.MaxRestarts,
		RestartBackoff: cfg.Supervisor.RestartBackoff,
		OnStateChange: func(s sentiment.State) {
			metrics.SetSupervisorState(int(s))
		},
	}, health), nil
}

// servicePort is the port the spawned service must listen on to match the
// URL the client calls.
func servicePort(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return ""
	}
	return u.Port()
}

// StartScoring launches the supervised service when there is one. A failed
// start is logged and the caller keeps going in degraded mode; runs will
// store posts without sentiment.
func (a *App) StartScoring(ctx context.Context) {
	if a.Supervisor == nil {
		return
	}
	if err := a.Supervisor.Start(ctx); err != nil {
		slog.Error("[App] Scoring service failed to start, continuing without sentiment",
			slog.String("error", err.Error()))
	}
}

// Close releases everything Bootstrap opened, stopping the supervised
// service first.
func (a *App) Close() {
	if a.Supervisor != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.Supervisor.Stop(stopCtx); err != nil {
			slog.Warn("[App] Failed to stop scoring service", slog.String("error", err.Error()))
		}
		cancel()
	}
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Valkey != nil {
		a.Valkey.Close()
	}
	a.Postgres.Close()
}
