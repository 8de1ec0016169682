package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetched(models.PlatformReddit, 3)
		m.ObserveAnnotations([]models.AnnotatedPost{{}})
		m.ObserveStored(1, 2, 3)
		m.ObserveRun("acme", time.Second)
		m.IncSkipped()
		m.SetSupervisorState(2)
	})
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveFetched(models.PlatformYouTube, 2)
	m.ObserveFetched(models.PlatformYouTube, 3)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.postsFetched.WithLabelValues("youtube")))

	labeled := models.AnnotatedPost{
		SentimentOutcome: models.LabeledOutcome(models.SentimentPositive, 0.9, 0.8, "vader", time.Now()),
	}
	failed := models.AnnotatedPost{SentimentOutcome: models.FailedOutcome(models.ErrorKindNoText)}
	m.ObserveAnnotations([]models.AnnotatedPost{labeled, labeled, failed})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.annotations.WithLabelValues("labeled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.annotations.WithLabelValues("NO_TEXT")))

	m.ObserveStored(4, 1, 0)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.postsStored.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.postsStored.WithLabelValues("duplicate")))

	m.IncSkipped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsSkipped))
}

func TestMetricsMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(m.MetricsMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", Handler(reg))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `brandpulse_http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}
