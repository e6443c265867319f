package cmd

import (
	"github.com/blacktop/blogrelay/internal/config"
	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/relay/dispatch"
	"github.com/blacktop/blogrelay/internal/relay/facebook"
	"github.com/blacktop/blogrelay/internal/relay/graph"
	"github.com/blacktop/blogrelay/internal/relay/instagram"
	"github.com/blacktop/blogrelay/internal/relay/pipeline"
	"github.com/blacktop/blogrelay/internal/relay/sanity"
)

// platforms bundles the per-platform clients. Each platform gets its own Graph
// client and HTTP connection pool.
type platforms struct {
	feedGraph  *graph.Client
	mediaGraph *graph.Client
	feed       *facebook.Client
	media      *instagram.Client
}

func newGraphClient(cfg config.Config) (*graph.Client, error) {
	return graph.New(graph.Config{
		BaseURL:       cfg.Graph.BaseURL,
		Version:       cfg.Graph.Version,
		Token:         cfg.Graph.Token,
		AppSecret:     cfg.Graph.AppSecret,
		Timeout:       cfg.Graph.Timeout,
		LookupRetries: cfg.Graph.LookupRetries,
	})
}

func buildPlatforms(cfg config.Config) (*platforms, error) {
	feedGraph, err := newGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	mediaGraph, err := newGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	return &platforms{
		feedGraph:  feedGraph,
		mediaGraph: mediaGraph,
		feed:       facebook.New(feedGraph, cfg.Facebook.Denylist),
		media:      instagram.New(mediaGraph),
	}, nil
}

func buildPipeline(cfg config.Config, p *platforms, m *metrics.Metrics) *pipeline.Pipeline {
	return pipeline.New(p.media, cfg.Policy, pipeline.WithMetrics(m))
}

func buildDispatcher(cfg config.Config, p *platforms, m *metrics.Metrics) (*dispatch.Dispatcher, error) {
	assets, err := sanity.NewAssets(cfg.Sanity.ProjectID, cfg.Sanity.Dataset, cfg.Sanity.CDNBaseURL)
	if err != nil {
		return nil, err
	}
	return dispatch.New(dispatch.Config{
		PageID:         cfg.Facebook.PageID,
		MediaAccountID: cfg.Instagram.AccountID,
		MediaPageID:    cfg.Instagram.PageID,
		SiteBaseURL:    cfg.Site.BaseURL,
		CallToAction:   cfg.Site.CallToAction,
		Sequential:     cfg.Server.Sequential,
	}, dispatch.Deps{
		Feed:        p.feed,
		FeedTokens:  p.feedGraph,
		Media:       buildPipeline(cfg, p, m),
		MediaTokens: p.mediaGraph,
		Assets:      assets,
		Metrics:     m,
	})
}
