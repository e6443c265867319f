package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Publication("facebook", true)
	m.Publication("instagram", false)
	m.Publication("instagram", false)
	m.ContainerPoll("video", "in_progress")
	m.PipelineDone("video", "success", 12*time.Second)
	m.WebhookEvent("ignored")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.publications.WithLabelValues("facebook", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.publications.WithLabelValues("instagram", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.containerPolls.WithLabelValues("video", "in_progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("ignored")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pipelineDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Publication("facebook", true)
		m.ContainerPoll("image", "finished")
		m.PipelineDone("image", "success", time.Second)
		m.WebhookEvent("dispatched")
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(nil)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/healthz", "/healthz", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}
