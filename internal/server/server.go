package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blacktop/blogrelay/internal/dedupe"
	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/dispatch"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultAddr            = ":8080"
	DefaultDispatchTimeout = 5 * time.Minute
	shutdownTimeout        = 10 * time.Second
)

// Dispatcher publishes a normalized event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev relay.PostEvent) dispatch.Outcome
}

// Config configures the webhook server.
type Config struct {
	Addr            string
	WebhookSecret   string
	DispatchTimeout time.Duration
	DedupeTTL       time.Duration
}

// Server receives CMS webhooks and hands new posts to the Dispatcher.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	dedupe     dedupe.Store
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	now        func() time.Time
	engine     *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithDedupe sets the delivery store. Without one every delivery is dispatched.
func WithDedupe(store dedupe.Store) Option {
	return func(s *Server) { s.dedupe = store }
}

// WithMetrics records HTTP and webhook metrics and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithClock overrides the clock used for signature windows.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the server and its routes.
func New(cfg Config, d Dispatcher, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = dedupe.DefaultTTL
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), s.metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/webhooks/sanity", s.handleWebhook)
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logutil.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logutil.Infof("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
