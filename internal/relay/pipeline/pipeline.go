package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/relay"
)

// Pipeline drives create → poll → publish for media containers. It keeps no state
// between runs, so one Pipeline serves concurrent publications.
type Pipeline struct {
	client  relay.MediaClient
	policy  Policy
	clock   Clock
	metrics *metrics.Metrics
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock used for waits.
func WithClock(clock Clock) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithMetrics records polls and run durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New constructs a Pipeline.
func New(client relay.MediaClient, policy Policy, opts ...Option) *Pipeline {
	if policy.CarouselConcurrency < 1 {
		policy.CarouselConcurrency = 1
	}
	p := &Pipeline{client: client, policy: policy, clock: realClock{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish runs one media item through the container lifecycle.
func (p *Pipeline) Publish(ctx context.Context, acct relay.Account, item relay.MediaItem) relay.PublishResult {
	if item.Kind == relay.KindCarousel || item.Kind == relay.KindCarouselChild {
		return relay.Failed(relay.ReasonInvalidInput, fmt.Errorf("%w: %s items are published with PublishCarousel", relay.ErrInvalidInput, item.Kind))
	}

	start := p.clock.Now()
	id, err := p.client.CreateContainer(ctx, acct, item)
	if err != nil {
		logutil.Errorf("container creation failed: kind=%s err=%v", item.Kind, err)
		return p.finish(item.Kind, start, failure(ctx, relay.ReasonContainerCreate, err))
	}

	container := relay.Container{ID: id, Kind: item.Kind, CreatedAt: start}
	return p.finish(item.Kind, start, p.awaitAndPublish(ctx, acct, container))
}

// awaitAndPublish waits for the container to become ready, then publishes it.
func (p *Pipeline) awaitAndPublish(ctx context.Context, acct relay.Account, container relay.Container) relay.PublishResult {
	log := logutil.With("container_id", container.ID, "kind", container.Kind.String())

	attempts := 0
	if container.Kind == relay.KindImage && p.policy.ImageFastPath {
		log.Debug("image fast path", "delay", p.policy.ImageDelay)
		if err := p.clock.Sleep(ctx, p.policy.ImageDelay); err != nil {
			return withContainer(relay.Failed(relay.ReasonCancelled, err), container.ID, attempts)
		}
	} else {
		var err error
		attempts, err = p.poll(ctx, acct, container)
		if err != nil {
			var timeoutErr *relay.TimeoutError
			switch {
			case errors.As(err, &timeoutErr):
				log.Error("container not ready in time", "attempts", attempts)
				return withContainer(relay.Failed(relay.ReasonTimeout, err), container.ID, attempts)
			case ctx.Err() != nil:
				log.Warn("polling cancelled", "attempts", attempts)
				return withContainer(relay.Failed(relay.ReasonCancelled, err), container.ID, attempts)
			default:
				log.Error("container processing failed", "err", err)
				return withContainer(relay.Failed(relay.ReasonContainerProcess, err), container.ID, attempts)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return withContainer(relay.Failed(relay.ReasonCancelled, err), container.ID, attempts)
	}

	mediaID, err := p.client.Publish(ctx, acct, container.ID)
	if err != nil {
		log.Error("publish failed", "err", err)
		return withContainer(failure(ctx, relay.ReasonPublish, err), container.ID, attempts)
	}
	return relay.PublishResult{
		Success:     true,
		MediaID:     mediaID,
		ContainerID: container.ID,
		FailedIndex: -1,
		Attempts:    attempts,
	}
}

// poll reads the container status until it is finished, fails, or the attempt budget runs out.
// A failed status read counts as Unknown.
func (p *Pipeline) poll(ctx context.Context, acct relay.Account, container relay.Container) (int, error) {
	wait := p.policy.WaitFor(container.Kind)
	maxAttempts := wait.Attempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := p.clock.Sleep(ctx, wait.Delay(attempt)); err != nil {
			return attempt - 1, err
		}

		status, err := p.client.ContainerStatus(ctx, acct, container.ID)
		if err != nil {
			logutil.Warnf("status read failed, treating as unknown: container_id=%s attempt=%d err=%v", container.ID, attempt, err)
			status = relay.StatusUnknown
		}
		p.metrics.ContainerPoll(container.Kind.String(), status.String())

		switch {
		case status == relay.StatusFinished:
			logutil.Debugf("container ready: container_id=%s attempts=%d", container.ID, attempt)
			return attempt, nil
		case status.Terminal():
			return attempt, fmt.Errorf("container %s processing ended with status %s", container.ID, status)
		}
	}
	if err := ctx.Err(); err != nil {
		return maxAttempts, err
	}
	return maxAttempts, &relay.TimeoutError{Attempts: maxAttempts}
}

func (p *Pipeline) finish(kind relay.MediaKind, start time.Time, res relay.PublishResult) relay.PublishResult {
	outcome := "success"
	if !res.Success {
		outcome = string(res.Reason)
	}
	p.metrics.PipelineDone(kind.String(), outcome, p.clock.Now().Sub(start))
	return res
}

func failure(ctx context.Context, reason relay.FailureReason, err error) relay.PublishResult {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return relay.Failed(relay.ReasonCancelled, err)
	}
	return relay.Failed(reason, err)
}

func withContainer(res relay.PublishResult, containerID string, attempts int) relay.PublishResult {
	res.ContainerID = containerID
	res.Attempts = attempts
	return res
}
