package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/graph"
)

const providerName = "instagram"

var _ relay.MediaClient = (*Client)(nil)

// Client implements relay.MediaClient on top of the Graph API container endpoints.
type Client struct {
	graph *graph.Client
}

// New wraps a Graph API client.
func New(gc *graph.Client) *Client {
	return &Client{graph: gc}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

type idResponse struct {
	ID string `json:"id"`
}

// CreateContainer creates a media container for a single item.
func (c *Client) CreateContainer(ctx context.Context, acct relay.Account, item relay.MediaItem) (string, error) {
	form, err := containerParams(item)
	if err != nil {
		return "", err
	}

	logutil.Debugf("creating %s container: account=%s url=%s", item.Kind, acct.ID, item.SourceURL)
	id, err := c.create(ctx, acct, form)
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", item.Kind, err)
	}
	logutil.Debugf("%s container created: container_id=%s", item.Kind, id)
	return id, nil
}

// CreateCarouselContainer creates the parent container referencing already created children, in order.
func (c *Client) CreateCarouselContainer(ctx context.Context, acct relay.Account, childIDs []string, caption string) (string, error) {
	if len(childIDs) == 0 {
		return "", relay.ValidationError{Provider: providerName, Reason: "carousel has no children"}
	}
	form := url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(childIDs, ",")},
	}
	if caption != "" {
		form.Set("caption", caption)
	}

	id, err := c.create(ctx, acct, form)
	if err != nil {
		return "", fmt.Errorf("create carousel container: %w", err)
	}
	logutil.Debugf("carousel container created: container_id=%s children=%d", id, len(childIDs))
	return id, nil
}

func (c *Client) create(ctx context.Context, acct relay.Account, form url.Values) (string, error) {
	var res idResponse
	if err := c.graph.Post(ctx, acct.ID+"/media", acct.Token, form, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", errors.New("empty container id in response")
	}
	return res.ID, nil
}

// ContainerStatus reads the current processing state of a container.
func (c *Client) ContainerStatus(ctx context.Context, acct relay.Account, containerID string) (relay.ContainerStatus, error) {
	var res struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	params := url.Values{"fields": {"status_code,status"}}
	if err := c.graph.Get(ctx, containerID, acct.Token, params, &res); err != nil {
		return relay.StatusUnknown, fmt.Errorf("check container status: %w", err)
	}
	code := res.StatusCode
	if strings.TrimSpace(code) == "" {
		code = statusCode(res.Status)
	}
	status := relay.ParseContainerStatus(code)
	logutil.Debugf("container status: container_id=%s status_code=%s status=%q", containerID, res.StatusCode, res.Status)
	return status, nil
}

// Publish publishes a ready container and returns the media id.
func (c *Client) Publish(ctx context.Context, acct relay.Account, containerID string) (string, error) {
	var res idResponse
	form := url.Values{"creation_id": {containerID}}
	if err := c.graph.Post(ctx, acct.ID+"/media_publish", acct.Token, form, &res); err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("publish container %s: empty media id in response", containerID)
	}
	logutil.Infof("instagram media published: media_id=%s container_id=%s", res.ID, containerID)
	return res.ID, nil
}

// statusCode extracts the state from a status text such as "In Progress: Media is still being processed.".
func statusCode(status string) string {
	state, _, _ := strings.Cut(status, ":")
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(state)), " ", "_")
}

func containerParams(item relay.MediaItem) (url.Values, error) {
	if strings.TrimSpace(item.SourceURL) == "" {
		return nil, relay.ValidationError{Provider: providerName, Reason: fmt.Sprintf("%s item has no source url", item.Kind)}
	}

	form := url.Values{}
	switch item.Kind {
	case relay.KindImage:
		form.Set("image_url", item.SourceURL)
	case relay.KindVideo:
		form.Set("media_type", "VIDEO")
		form.Set("video_url", item.SourceURL)
	case relay.KindStory:
		form.Set("media_type", "STORIES")
		if item.Video {
			form.Set("video_url", item.SourceURL)
		} else {
			form.Set("image_url", item.SourceURL)
		}
	case relay.KindReel:
		form.Set("media_type", "REELS")
		form.Set("video_url", item.SourceURL)
		form.Set("share_to_feed", strconv.FormatBool(item.ShareToFeed))
	case relay.KindCarouselChild:
		form.Set("is_carousel_item", "true")
		if item.Video {
			form.Set("media_type", "VIDEO")
			form.Set("video_url", item.SourceURL)
		} else {
			form.Set("image_url", item.SourceURL)
		}
	default:
		return nil, relay.ValidationError{Provider: providerName, Reason: fmt.Sprintf("cannot create a container for %s items", item.Kind)}
	}

	// Stories and carousel children take no caption of their own.
	if item.Caption != "" && item.Kind != relay.KindStory && item.Kind != relay.KindCarouselChild {
		form.Set("caption", item.Caption)
	}
	return form, nil
}
