package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spacesedan/brandpulse/internal/monitoring"
)

// READY_MESSAGE is the stdout line the collector's supervisor waits for.
const READY_MESSAGE = "scoring service ready"

type Server struct {
	backend Backend
	router  *gin.Engine
	now     func() time.Time
}

// NewServer builds the router. A nil backend serves /health as not ready and
// rejects /analyze with 503.
func NewServer(backend Backend, metrics *monitoring.Metrics) *Server {
	s := &Server{backend: backend, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), metrics.MetricsMiddleware())
	r.GET("/health", s.handleHealth)
	r.POST("/analyze", s.handleAnalyze)
	s.router = r
	return s
}

// Router exposes the engine so binaries can mount extra routes such as
// /metrics.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) loaded() bool {
	return s.backend != nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.loaded() {
		c.JSON(http.StatusOK, models.HealthResponse{Status: "not_ready", ModelType: "unknown"})
		return
	}
	info := s.backend.Info()
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:        "healthy",
		ModelLoaded:   true,
		ModelType:     info.ModelType,
		Provider:      info.Provider,
		ModelName:     info.ModelName,
		APIConfigured: info.APIConfigured,
	})
}

// analyzeBody keeps posts as a pointer so a missing field is told apart from
// an empty list.
type analyzeBody struct {
	Posts *[]models.AnalyzeRequestPost `json:"posts"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if !s.loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Model not loaded. Service is not ready."})
		return
	}

	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if body.Posts == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "posts is required"})
		return
	}
	posts := *body.Posts
	if len(posts) == 0 {
		c.JSON(http.StatusOK, models.AnalyzeResponse{Results: []models.AnalyzeResult{}})
		return
	}

	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = requestText(p)
	}

	start := time.Now()
	predictions := s.backend.Predict(c.Request.Context(), texts)
	if len(predictions) != len(posts) {
		slog.Error("[ScoringServer] Backend returned wrong number of predictions",
			slog.Int("posts", len(posts)),
			slog.Int("predictions", len(predictions)))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "error during sentiment analysis"})
		return
	}

	info := s.backend.Info()
	analyzedAt := s.now().UTC().Format(time.RFC3339Nano)
	results := make([]models.AnalyzeResult, len(posts))
	for i, p := range posts {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("temp_%d", i)
		}
		results[i] = models.AnalyzeResult{
			ID:                  id,
			Sentiment:           string(predictions[i].Label),
			SentimentScore:      predictions[i].Score,
			SentimentConfidence: predictions[i].Confidence,
			SentimentAnalyzedAt: analyzedAt,
			SentimentSource:     info.Source,
		}
	}

	slog.Info("[ScoringServer] Analyzed posts",
		slog.Int("posts", len(posts)),
		slog.String("model_type", info.ModelType),
		slog.Duration("elapsed", time.Since(start)))
	c.JSON(http.StatusOK, models.AnalyzeResponse{Results: results})
}

// requestText prefers the structured content fields, then the flat ones.
func requestText(p models.AnalyzeRequestPost) string {
	var candidates []string
	if p.Content != nil {
		candidates = []string{p.Content.Text, p.Content.Description, p.Content.Title}
	} else {
		candidates = []string{p.Text, p.Summary, p.Title}
	}
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

// Run serves on addr until ctx is cancelled. The ready line is logged once
// the listener is bound.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	attrs := []any{slog.String("addr", ln.Addr().String())}
	if s.loaded() {
		info := s.backend.Info()
		attrs = append(attrs,
			slog.String("model_type", info.ModelType),
			slog.String("provider", info.Provider),
			slog.String("model_name", info.ModelName))
	}
	slog.Info("[ScoringServer] "+READY_MESSAGE, attrs...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("[ScoringServer] Shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
