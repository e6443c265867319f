package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blogrelay"

// Metrics holds the relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	publications     *prometheus.CounterVec
	containerPolls   *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	webhookEvents    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publications_total",
				Help:      "Publications attempted per platform and outcome",
			},
			[]string{"platform", "outcome"},
		),
		containerPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "container_polls_total",
				Help:      "Container status reads per media kind and reported status",
			},
			[]string{"kind", "status"},
		),
		pipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Time from container creation to terminal state",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind", "outcome"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Webhook deliveries by handling result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.publications, m.containerPolls, m.pipelineDuration, m.webhookEvents, m.httpRequests, m.httpDuration)
	}
	return m
}

// Publication counts a terminal publication outcome for platform.
func (m *Metrics) Publication(platform string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.publications.WithLabelValues(platform, outcome).Inc()
}

// ContainerPoll counts one status read.
func (m *Metrics) ContainerPoll(kind, status string) {
	if m == nil {
		return
	}
	m.containerPolls.WithLabelValues(kind, status).Inc()
}

// PipelineDone observes how long a pipeline run took and how it ended.
func (m *Metrics) PipelineDone(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(kind, outcome).Observe(elapsed.Seconds())
}

// WebhookEvent counts a webhook delivery by result (dispatched, ignored, duplicate, rejected, error).
func (m *Metrics) WebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
