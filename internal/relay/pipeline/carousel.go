package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/relay"
	"golang.org/x/sync/errgroup"
)

// PublishCarousel creates one child container per item, wraps them in a parent
// carousel container in input order, then polls and publishes the parent.
func (p *Pipeline) PublishCarousel(ctx context.Context, acct relay.Account, items []relay.MediaItem, caption string) relay.PublishResult {
	if err := validateCarousel(items); err != nil {
		return relay.Failed(relay.ReasonInvalidInput, err)
	}

	start := p.clock.Now()
	childIDs, err := p.createChildren(ctx, acct, items)
	if err != nil {
		res := failure(ctx, relay.ReasonCarouselChild, err)
		var childErr *relay.CarouselChildError
		if errors.As(err, &childErr) {
			res.FailedIndex = childErr.Index
		}
		logutil.Errorf("carousel aborted: %v", err)
		return p.finish(relay.KindCarousel, start, res)
	}

	parentID, err := p.client.CreateCarouselContainer(ctx, acct, childIDs, caption)
	if err != nil {
		logutil.Errorf("carousel container creation failed: %v", err)
		return p.finish(relay.KindCarousel, start, failure(ctx, relay.ReasonContainerCreate, err))
	}

	parent := relay.Container{ID: parentID, Kind: relay.KindCarousel, CreatedAt: start}
	return p.finish(relay.KindCarousel, start, p.awaitAndPublish(ctx, acct, parent))
}

// createChildren creates child containers concurrently, recording each id at its input index.
// The first failure cancels the remaining creations.
func (p *Pipeline) createChildren(ctx context.Context, acct relay.Account, items []relay.MediaItem) ([]string, error) {
	ids := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.policy.CarouselConcurrency)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			id, err := p.client.CreateContainer(gctx, acct, item)
			if err != nil {
				return &relay.CarouselChildError{Index: i, Err: err}
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func validateCarousel(items []relay.MediaItem) error {
	if n := len(items); n < minCarouselItems || n > maxCarouselItems {
		return fmt.Errorf("%w: carousel needs %d to %d items, got %d", relay.ErrInvalidInput, minCarouselItems, maxCarouselItems, n)
	}
	for i, item := range items {
		if item.Kind != relay.KindCarouselChild {
			return fmt.Errorf("%w: carousel item %d is a %s item", relay.ErrInvalidInput, i, item.Kind)
		}
	}
	return nil
}
