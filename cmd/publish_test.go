package cmd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVideoURL(t *testing.T) {
	assert.True(t, isVideoURL("https://cdn.example.com/clip.mp4"))
	assert.True(t, isVideoURL("https://cdn.example.com/clip.MOV?sig=abc"))
	assert.False(t, isVideoURL("https://cdn.example.com/cover.jpg"))
	assert.False(t, isVideoURL("https://cdn.example.com/video"))
}

func TestCarouselItems(t *testing.T) {
	items := carouselItems([]string{"https://x/a.jpg", "https://x/b.mp4"})
	require.Len(t, items, 2)
	assert.Equal(t, relay.MediaItem{Kind: relay.KindCarouselChild, SourceURL: "https://x/a.jpg"}, items[0])
	assert.Equal(t, relay.MediaItem{Kind: relay.KindCarouselChild, SourceURL: "https://x/b.mp4", Video: true}, items[1])
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"published=true", "place=123=456"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"published": "true", "place": "123=456"}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)

	_, err = parseParams([]string{"novalue"})
	assert.ErrorContains(t, err, "want key=value")
}

func TestResolveCaption(t *testing.T) {
	t.Cleanup(func() { captionFlag = "" })

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("  piped caption\n"))
	caption, err := resolveCaption(cmd, true)
	require.NoError(t, err)
	assert.Equal(t, "piped caption", caption)

	captionFlag = " flag caption "
	caption, err = resolveCaption(cmd, true)
	require.NoError(t, err)
	assert.Equal(t, "flag caption", caption)

	captionFlag = ""
	cmd.SetIn(strings.NewReader(""))
	_, err = resolveCaption(cmd, true)
	assert.EqualError(t, err, "message is required")

	caption, err = resolveCaption(cmd, false)
	require.NoError(t, err)
	assert.Empty(t, caption)
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printResult(&out, "image", relay.PublishResult{Success: true, MediaID: "m-1", ContainerID: "c-1", FailedIndex: -1}))
	assert.Equal(t, "published image: media_id=m-1 container_id=c-1\n", out.String())

	err := printResult(&out, "carousel", relay.PublishResult{Reason: relay.ReasonCarouselChild, FailedIndex: 1, Err: errors.New("bad image")})
	assert.EqualError(t, err, "carousel: carousel_child_error (item 1): bad image")
}

func TestPublishDryRun(t *testing.T) {
	t.Cleanup(func() {
		dryRun = false
		captionFlag = ""
	})

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs([]string{"publish", "carousel", "https://x/a.jpg", "https://x/b.mp4", "--dry-run", "--caption", "hello"})

	require.NoError(t, root.Execute())
	assert.Equal(t, `[dry-run] carousel item 0: https://x/a.jpg (video: false)
[dry-run] carousel item 1: https://x/b.mp4 (video: true)
[dry-run] caption: "hello"
`, out.String())
}

func TestPublishFeedCallToActionDryRun(t *testing.T) {
	t.Cleanup(func() { dryRun = false })

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"publish", "feed", "new drop", "--dry-run", "--cta-link", "https://x/shop"})

	require.NoError(t, root.Execute())
	assert.Equal(t, `[dry-run] would post to facebook: "new drop"
[dry-run] call to action: BUY_NOW https://x/shop
`, out.String())

	root = newRootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"publish", "feed", "new drop", "--dry-run", "--cta-type", "SHOP_NOW"})
	assert.EqualError(t, root.Execute(), "--cta-link is required with a call to action")
}

func TestCompletion(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "blogrelay")
	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())
}
