package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blacktop/blogrelay/internal/metrics"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/sanity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	mu    sync.Mutex
	gate  <-chan struct{}
	err   error
	acct  relay.Account
	posts []relay.FeedPost
}

func (f *fakeFeed) CreateFeedPost(_ context.Context, acct relay.Account, post relay.FeedPost) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-time.After(2 * time.Second):
			return "", errors.New("media publication never started")
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acct = acct
	f.posts = append(f.posts, post)
	if f.err != nil {
		return "", f.err
	}
	return "1789_1", nil
}

type fakeMedia struct {
	mu      sync.Mutex
	started func()
	result  relay.PublishResult
	acct    relay.Account
	items   []relay.MediaItem
}

func (m *fakeMedia) Publish(_ context.Context, acct relay.Account, item relay.MediaItem) relay.PublishResult {
	if m.started != nil {
		m.started()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acct = acct
	m.items = append(m.items, item)
	return m.result
}

type staticTokens struct{ token string }

func (s staticTokens) ResolveAccount(_ context.Context, pageID string) relay.Account {
	return relay.Account{ID: pageID, Token: s.token}
}

type fixture struct {
	feed  *fakeFeed
	media *fakeMedia
	reg   *prometheus.Registry
	d     *Dispatcher
}

func newFixture(t *testing.T, sequential bool) *fixture {
	t.Helper()
	assets, err := sanity.NewAssets("proj", "production", "")
	require.NoError(t, err)

	f := &fixture{
		feed:  &fakeFeed{},
		media: &fakeMedia{result: relay.PublishResult{Success: true, MediaID: "media-1", ContainerID: "c-1", FailedIndex: -1}},
		reg:   prometheus.NewRegistry(),
	}
	f.d, err = New(Config{
		PageID:         "1789",
		MediaAccountID: "17841400000000000",
		MediaPageID:    "1790",
		SiteBaseURL:    "https://blog.example.com/",
		Sequential:     sequential,
	}, Deps{
		Feed:        f.feed,
		FeedTokens:  staticTokens{token: "feed-token"},
		Media:       f.media,
		MediaTokens: staticTokens{token: "media-token"},
		Assets:      assets,
		Metrics:     metrics.New(f.reg),
	})
	require.NoError(t, err)
	return f
}

func testEvent() relay.PostEvent {
	published := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return relay.PostEvent{
		ID:           "post-1",
		Title:        "X",
		BodyExcerpt:  "Y",
		Slug:         "x",
		ImageRef:     "image-abc123-800x600-jpg",
		DocumentType: "blog",
		PublishedAt:  &published,
	}
}

func TestDispatchBothPlatforms(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		f := newFixture(t, sequential)

		out := f.d.Dispatch(context.Background(), testEvent())

		require.True(t, out.Feed.Success, out.Feed.Error())
		require.True(t, out.Media.Success, out.Media.Error())
		assert.False(t, out.Failed())
		assert.False(t, out.Partial())
		assert.NoError(t, out.Err())
		assert.Equal(t, "1789_1", out.Feed.MediaID)

		require.Len(t, f.feed.posts, 1)
		assert.Equal(t, "X\n\n\n\nY", f.feed.posts[0].Message)
		assert.Equal(t, "https://blog.example.com/x", f.feed.posts[0].Link)
		assert.Equal(t, relay.Account{ID: "1789", Token: "feed-token"}, f.feed.acct)

		require.Len(t, f.media.items, 1)
		item := f.media.items[0]
		assert.Equal(t, relay.KindImage, item.Kind)
		assert.Equal(t, "https://cdn.sanity.io/images/proj/production/abc123-800x600.jpg", item.SourceURL)
		assert.Equal(t, "X\n\nY\n\n"+DefaultCallToAction, item.Caption)
		assert.Equal(t, relay.Account{ID: "17841400000000000", Token: "media-token"}, f.media.acct)
	}
}

func TestDispatchRunsPlatformsConcurrently(t *testing.T) {
	f := newFixture(t, false)
	gate := make(chan struct{})
	f.feed.gate = gate
	f.media.started = func() { close(gate) }

	out := f.d.Dispatch(context.Background(), testEvent())

	assert.True(t, out.Feed.Success, out.Feed.Error())
	assert.True(t, out.Media.Success, out.Media.Error())
}

func TestDispatchFeedFailureDoesNotStopMedia(t *testing.T) {
	f := newFixture(t, false)
	f.feed.err = errors.New("(#200) permissions error")

	out := f.d.Dispatch(context.Background(), testEvent())

	assert.False(t, out.Feed.Success)
	assert.Equal(t, relay.ReasonFeedPost, out.Feed.Reason)
	assert.True(t, out.Media.Success)
	assert.True(t, out.Partial())
	assert.ErrorContains(t, out.Err(), "facebook: (#200) permissions error")
	assert.Len(t, f.media.items, 1)

	expected := `
# HELP blogrelay_publications_total Publications attempted per platform and outcome
# TYPE blogrelay_publications_total counter
blogrelay_publications_total{outcome="failure",platform="facebook"} 1
blogrelay_publications_total{outcome="success",platform="instagram"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "blogrelay_publications_total"))
}

func TestDispatchMediaFailureDoesNotStopFeed(t *testing.T) {
	f := newFixture(t, true)
	f.media.result = relay.Failed(relay.ReasonTimeout, &relay.TimeoutError{Attempts: 12})

	out := f.d.Dispatch(context.Background(), testEvent())

	assert.True(t, out.Feed.Success)
	assert.False(t, out.Media.Success)
	assert.Equal(t, relay.ReasonTimeout, out.Media.Reason)
	assert.True(t, out.Partial())
	assert.ErrorContains(t, out.Err(), "instagram: timeout after 12 attempts")
}

func TestDispatchBadAssetReference(t *testing.T) {
	f := newFixture(t, false)
	f.feed.err = errors.New("down")
	ev := testEvent()
	ev.ImageRef = "not-a-ref"

	out := f.d.Dispatch(context.Background(), ev)

	assert.Equal(t, relay.ReasonAsset, out.Media.Reason)
	assert.Empty(t, f.media.items)
	assert.True(t, out.Failed())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, Deps{})
	var missing relay.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"FACEBOOK_PAGE_ID", "INSTAGRAM_BUSINESS_ACCOUNT_ID", "SITE_BASE_URL"}, missing.Variables)

	_, err = New(Config{PageID: "1", MediaAccountID: "2", SiteBaseURL: "https://x"}, Deps{})
	assert.EqualError(t, err, "dispatch: missing dependency")
}

func TestTexts(t *testing.T) {
	ev := relay.PostEvent{Title: "Title", BodyExcerpt: "Excerpt", Slug: "/my-post"}
	assert.Equal(t, "Title\n\n\n\nExcerpt", FeedMessage(ev))
	assert.Equal(t, "Title\n\nExcerpt\n\nRead more", MediaCaption(ev, "Read more"))
	assert.Equal(t, "https://blog.example.com/my-post", PostLink("https://blog.example.com//", ev.Slug))
	assert.Equal(t, "https://blog.example.com/blog/my-post", PostLink("https://blog.example.com/blog", "my-post"))
}
