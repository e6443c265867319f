package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/blacktop/blogrelay/internal/relay"
)

const (
	defaultMaxAttempts         = 12
	defaultCarouselConcurrency = 4
	maxCarouselItems           = 10
	minCarouselItems           = 2
)

// WaitPolicy bounds the readiness polling of one container.
type WaitPolicy struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	// Multiplier grows the interval between attempts; values below 1 keep it fixed.
	Multiplier  float64       `yaml:"multiplier"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

// Attempts returns the normalized attempt budget.
func (w WaitPolicy) Attempts() int {
	if w.MaxAttempts < 1 {
		return 1
	}
	return w.MaxAttempts
}

// Delay is the wait before the given 1-based attempt.
func (w WaitPolicy) Delay(attempt int) time.Duration {
	if w.Interval <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := w.Interval
	if w.Multiplier > 1 {
		delay = time.Duration(float64(w.Interval) * math.Pow(w.Multiplier, float64(attempt-1)))
	}
	if w.MaxInterval > 0 && delay > w.MaxInterval {
		delay = w.MaxInterval
	}
	return delay
}

// Policy holds the per-kind timing knobs of the pipeline.
type Policy struct {
	// ImageFastPath publishes images after ImageDelay without polling.
	ImageFastPath bool          `yaml:"image_fast_path"`
	ImageDelay    time.Duration `yaml:"image_delay"`

	Image    WaitPolicy `yaml:"image"`
	Video    WaitPolicy `yaml:"video"`
	Story    WaitPolicy `yaml:"story"`
	Reel     WaitPolicy `yaml:"reel"`
	Carousel WaitPolicy `yaml:"carousel"`

	// CarouselConcurrency caps concurrent child container creation. 1 creates children one by one.
	CarouselConcurrency int `yaml:"carousel_concurrency"`
}

// DefaultPolicy mirrors the timings the platform documentation recommends:
// images publish after a short delay, videos and reels poll every 10s, stories every 5s.
func DefaultPolicy() Policy {
	return Policy{
		ImageFastPath:       true,
		ImageDelay:          5 * time.Second,
		Image:               WaitPolicy{Interval: 5 * time.Second, MaxAttempts: defaultMaxAttempts},
		Video:               WaitPolicy{Interval: 10 * time.Second, MaxAttempts: defaultMaxAttempts},
		Story:               WaitPolicy{Interval: 5 * time.Second, MaxAttempts: defaultMaxAttempts},
		Reel:                WaitPolicy{Interval: 10 * time.Second, MaxAttempts: defaultMaxAttempts},
		Carousel:            WaitPolicy{Interval: 5 * time.Second, MaxAttempts: defaultMaxAttempts},
		CarouselConcurrency: defaultCarouselConcurrency,
	}
}

// WaitFor returns the wait policy for containers of kind.
func (p Policy) WaitFor(kind relay.MediaKind) WaitPolicy {
	switch kind {
	case relay.KindVideo:
		return p.Video
	case relay.KindStory:
		return p.Story
	case relay.KindReel:
		return p.Reel
	case relay.KindCarousel:
		return p.Carousel
	default:
		return p.Image
	}
}

// Clock abstracts time so polling can be driven without real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
