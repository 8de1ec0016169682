package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spacesedan/brandpulse/config"
	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/logging"
	"github.com/spacesedan/brandpulse/internal/monitoring"
	"github.com/spacesedan/brandpulse/internal/scoring"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(cfg.Scoring)
	if err != nil {
		slog.Error("[SentimentService] Failed to load scoring backend",
			slog.String("backend", cfg.Scoring.Backend),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	srv := scoring.NewServer(backend, monitoring.NewMetrics(reg))
	srv.Router().GET("/metrics", monitoring.Handler(reg))

	if err := srv.Run(ctx, ":"+cfg.Scoring.Port); err != nil {
		slog.Error("[SentimentService] Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newBackend(sc config.ScoringConfig) (scoring.Backend, error) {
	if sc.Backend != "llm" {
		slog.Info("[SentimentService] Using VADER backend")
		return scoring.NewVaderBackend(), nil
	}

	llmCfg, err := scoring.LLMConfig{
		Provider: sc.LLMProvider,
		APIKey:   sc.LLMAPIKey,
		BaseURL:  sc.LLMBaseURL,
		Model:    sc.LLMModel,
	}.Resolve()
	if err != nil {
		return nil, err
	}
	client, err := clients.NewOpenAIClient(llmCfg.APIKey, llmCfg.BaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info("[SentimentService] Using LLM backend",
		slog.String("provider", llmCfg.Provider),
		slog.String("model", llmCfg.Model))
	return scoring.NewLLMBackend(client, llmCfg), nil
}
