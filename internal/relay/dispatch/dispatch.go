package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/relay"
)

const (
	PlatformFeed  = "facebook"
	PlatformMedia = "instagram"

	DefaultCallToAction = "Read the full article on our website, the link is in our profile bio."
)

// Config describes where an event is published and how the texts are built.
type Config struct {
	PageID         string
	MediaAccountID string
	// MediaPageID is the page linked to the media account; its token is used for media calls when set.
	MediaPageID  string
	SiteBaseURL  string
	CallToAction string
	// Sequential publishes the feed post before starting the media pipeline.
	Sequential bool
}

// MediaPublisher runs a single media item through the container lifecycle.
type MediaPublisher interface {
	Publish(ctx context.Context, acct relay.Account, item relay.MediaItem) relay.PublishResult
}

// Deps are the collaborators a Dispatcher calls out to.
type Deps struct {
	Feed        relay.FeedClient
	FeedTokens  relay.TokenResolver
	Media       MediaPublisher
	MediaTokens relay.TokenResolver
	Assets      relay.AssetResolver
	Metrics     *metrics.Metrics
}

// Dispatcher fans a post event out to the page feed and the media platform.
type Dispatcher struct {
	cfg  Config
	deps Deps
}

// New validates the configuration and dependencies.
func New(cfg Config, deps Deps) (*Dispatcher, error) {
	var missing []string
	if cfg.PageID == "" {
		missing = append(missing, "FACEBOOK_PAGE_ID")
	}
	if cfg.MediaAccountID == "" {
		missing = append(missing, "INSTAGRAM_BUSINESS_ACCOUNT_ID")
	}
	if cfg.SiteBaseURL == "" {
		missing = append(missing, "SITE_BASE_URL")
	}
	if len(missing) > 0 {
		return nil, relay.MissingEnvError{Provider: "dispatch", Variables: missing}
	}
	if deps.Feed == nil || deps.FeedTokens == nil || deps.Media == nil || deps.MediaTokens == nil || deps.Assets == nil {
		return nil, errors.New("dispatch: missing dependency")
	}
	if cfg.CallToAction == "" {
		cfg.CallToAction = DefaultCallToAction
	}
	return &Dispatcher{cfg: cfg, deps: deps}, nil
}

// Outcome holds the independent per-platform results of one event.
type Outcome struct {
	Feed  relay.PublishResult
	Media relay.PublishResult
}

// Failed reports whether no platform published the post.
func (o Outcome) Failed() bool {
	return !o.Feed.Success && !o.Media.Success
}

// Partial reports whether exactly one platform published the post.
func (o Outcome) Partial() bool {
	return o.Feed.Success != o.Media.Success
}

// Err joins the per-platform errors, nil when both succeeded.
func (o Outcome) Err() error {
	var errs []error
	if !o.Feed.Success && o.Feed.Err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PlatformFeed, o.Feed.Err))
	}
	if !o.Media.Success && o.Media.Err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PlatformMedia, o.Media.Err))
	}
	return errors.Join(errs...)
}

// Dispatch publishes ev to both platforms. A failure on one platform never
// stops or rolls back the other.
func (d *Dispatcher) Dispatch(ctx context.Context, ev relay.PostEvent) Outcome {
	log := logutil.With("post", ev.Slug)
	log.Info("dispatching post", "title", ev.Title)

	var out Outcome
	if d.cfg.Sequential {
		out.Feed = d.publishFeed(ctx, ev)
		out.Media = d.publishMedia(ctx, ev)
	} else {
		var wg sync.WaitGroup
		wg.Go(func() { out.Feed = d.publishFeed(ctx, ev) })
		wg.Go(func() { out.Media = d.publishMedia(ctx, ev) })
		wg.Wait()
	}

	d.deps.Metrics.Publication(PlatformFeed, out.Feed.Success)
	d.deps.Metrics.Publication(PlatformMedia, out.Media.Success)

	switch {
	case out.Failed():
		log.Error("post not published", "err", out.Err())
	case out.Partial():
		log.Warn("post partially published", "err", out.Err())
	default:
		log.Info("post published", "feed_post", out.Feed.MediaID, "media", out.Media.MediaID)
	}
	return out
}

func (d *Dispatcher) publishFeed(ctx context.Context, ev relay.PostEvent) relay.PublishResult {
	acct := d.deps.FeedTokens.ResolveAccount(ctx, d.cfg.PageID)
	acct.ID = d.cfg.PageID

	postID, err := d.deps.Feed.CreateFeedPost(ctx, acct, relay.FeedPost{
		Message: FeedMessage(ev),
		Link:    PostLink(d.cfg.SiteBaseURL, ev.Slug),
	})
	if err != nil {
		return relay.Failed(relay.ReasonFeedPost, err)
	}
	return relay.PublishResult{Success: true, MediaID: postID, FailedIndex: -1}
}

func (d *Dispatcher) publishMedia(ctx context.Context, ev relay.PostEvent) relay.PublishResult {
	imageURL, err := d.deps.Assets.AssetURL(ev.ImageRef)
	if err != nil {
		return relay.Failed(relay.ReasonAsset, err)
	}

	acct := d.deps.MediaTokens.ResolveAccount(ctx, d.cfg.MediaPageID)
	acct.ID = d.cfg.MediaAccountID

	return d.deps.Media.Publish(ctx, acct, relay.MediaItem{
		Kind:      relay.KindImage,
		SourceURL: imageURL,
		Caption:   MediaCaption(ev, d.cfg.CallToAction),
	})
}

// FeedMessage is the page feed text: the title, blank lines, then the excerpt.
func FeedMessage(ev relay.PostEvent) string {
	return ev.Title + "\n\n\n\n" + ev.BodyExcerpt
}

// MediaCaption is the media caption: title, excerpt and the call to action, separated by blank lines.
func MediaCaption(ev relay.PostEvent, callToAction string) string {
	return ev.Title + "\n\n" + ev.BodyExcerpt + "\n\n" + callToAction
}

// PostLink joins the site base URL and the post slug.
func PostLink(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(slug, "/")
}
