package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spacesedan/brandpulse/config"
	"github.com/spacesedan/brandpulse/internal/app"
	"github.com/spacesedan/brandpulse/internal/logging"
	"github.com/spacesedan/brandpulse/internal/monitoring"
	"github.com/spacesedan/brandpulse/internal/scheduler"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg, app.Options{
		Registerer: prometheus.DefaultRegisterer,
		Supervise:  true,
	})
	if err != nil {
		slog.Error("[Collector] Bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	a.StartScoring(ctx)
	if a.Supervisor != nil {
		go monitoring.MonitorScoringHealth(ctx, a.Supervisor, monitoring.HEALTHCHECK_TIMER, a.Metrics, nil)
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr, a.Metrics)

	sched := scheduler.New(a.Brands, a.Orchestrator, scheduler.Options{Resync: cfg.SchedulerResync})
	if err := sched.Start(ctx); err != nil {
		slog.Error("[Collector] Scheduler failed", slog.String("error", err.Error()))
	}

	slog.Info("[Collector] Shutting down collector gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Collector] Metrics server shutdown failed", slog.String("error", err.Error()))
	}
}

func startMetricsServer(addr string, metrics *monitoring.Metrics) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.MetricsMiddleware())
	r.GET("/metrics", monitoring.Handler(prometheus.DefaultGatherer))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info("[Collector] Metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Collector] Metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}
