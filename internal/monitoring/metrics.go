package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/brandpulse/internal/models"
)

const METRICS_NAMESPACE = "brandpulse"

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests and one-shot CLI runs quiet.
type Metrics struct {
	postsFetched    *prometheus.CounterVec
	annotations     *prometheus.CounterVec
	postsStored     *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsSkipped     prometheus.Counter
	supervisorState prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		postsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "posts_fetched_total",
			Help:      "Candidate posts returned by platform fetchers",
		}, []string{"platform"}),
		annotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "annotations_total",
			Help:      "Sentiment outcomes by result (labeled or error kind)",
		}, []string{"outcome"}),
		postsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "posts_stored_total",
			Help:      "Persistence results by kind (saved, duplicate, error)",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "run_duration_seconds",
			Help:      "Wall time of brand runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"brand"}),
		runsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "runs_skipped_total",
			Help:      "Executions skipped because the same group was already running",
		}),
		supervisorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "scoring_service_state",
			Help:      "Supervisor state: 0 stopped, 1 starting, 2 healthy, 3 degraded",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}

	reg.MustRegister(
		m.postsFetched,
		m.annotations,
		m.postsStored,
		m.runDuration,
		m.runsSkipped,
		m.supervisorState,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

func (m *Metrics) ObserveFetched(platform models.Platform, n int) {
	if m == nil {
		return
	}
	m.postsFetched.WithLabelValues(string(platform)).Add(float64(n))
}

func (m *Metrics) ObserveAnnotations(results []models.AnnotatedPost) {
	if m == nil {
		return
	}
	for _, r := range results {
		outcome := "labeled"
		if !r.Succeeded() {
			outcome = string(r.Error)
		}
		m.annotations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveStored(saved, duplicates, errors int) {
	if m == nil {
		return
	}
	m.postsStored.WithLabelValues("saved").Add(float64(saved))
	m.postsStored.WithLabelValues("duplicate").Add(float64(duplicates))
	m.postsStored.WithLabelValues("error").Add(float64(errors))
}

func (m *Metrics) ObserveRun(brandID string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(brandID).Observe(d.Seconds())
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.runsSkipped.Inc()
}

func (m *Metrics) SetSupervisorState(state int) {
	if m == nil {
		return
	}
	m.supervisorState.Set(float64(state))
}

// MetricsMiddleware returns middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves a registry through gin.
func Handler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
