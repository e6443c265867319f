package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blacktop/blogrelay/internal/config"
	"github.com/blacktop/blogrelay/internal/dedupe"
	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive CMS webhooks and relay new posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides RELAY_LISTEN_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if !logutil.Verbose() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := cfg.Require(config.ServeVars...); err != nil {
		return err
	}
	if cfg.Sanity.WebhookSecret == "" {
		logutil.Warnf("SANITY_WEBHOOK_SECRET is not set, webhook signatures are not checked")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p, err := buildPlatforms(cfg)
	if err != nil {
		return err
	}
	d, err := buildDispatcher(cfg, p, m)
	if err != nil {
		return err
	}

	store, err := newDedupeStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		WebhookSecret:   cfg.Sanity.WebhookSecret,
		DispatchTimeout: cfg.Server.DispatchTimeout,
		DedupeTTL:       cfg.Server.DedupeTTL,
	}, d, server.WithDedupe(store), server.WithMetrics(m, reg))

	return srv.Run(ctx)
}

func newDedupeStore(ctx context.Context, cfg config.Config) (dedupe.Store, error) {
	if cfg.Server.RedisURL == "" {
		logutil.Infof("using in-memory delivery dedupe")
		return dedupe.NewMemory(), nil
	}
	store, err := dedupe.NewRedis(ctx, cfg.Server.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect dedupe store: %w", err)
	}
	logutil.Infof("using redis delivery dedupe")
	return store, nil
}
