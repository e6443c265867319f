package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/graph"
)

const providerName = "facebook"

// DefaultDenylist holds feed parameters the Graph API rejects with error #100 for page posts.
var DefaultDenylist = []string{"picture", "name", "thumbnail", "description"}

var _ relay.FeedClient = (*Client)(nil)

// Client implements relay.FeedClient for page feeds.
type Client struct {
	graph    *graph.Client
	denylist map[string]struct{}
}

// New wraps a Graph API client. A nil denylist selects DefaultDenylist.
func New(gc *graph.Client, denylist []string) *Client {
	if denylist == nil {
		denylist = DefaultDenylist
	}
	deny := make(map[string]struct{}, len(denylist))
	for _, key := range denylist {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" {
			deny[key] = struct{}{}
		}
	}
	return &Client{graph: gc, denylist: deny}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// CreateFeedPost publishes a post to the page feed in a single call.
func (c *Client) CreateFeedPost(ctx context.Context, acct relay.Account, post relay.FeedPost) (string, error) {
	if acct.ID == "" {
		return "", relay.ValidationError{Provider: providerName, Reason: "page id is required"}
	}
	if strings.TrimSpace(post.Message) == "" && post.Link == "" {
		return "", relay.ValidationError{Provider: providerName, Reason: "post needs a message or a link"}
	}

	form, err := c.feedParams(post)
	if err != nil {
		return "", err
	}
	logutil.Infof("creating feed post: page_id=%s params=%s", acct.ID, strings.Join(sortedKeys(form), ","))

	var res struct {
		ID string `json:"id"`
	}
	if err := c.graph.Post(ctx, acct.ID+"/feed", acct.Token, form, &res); err != nil {
		return "", fmt.Errorf("create feed post: %w", err)
	}
	if res.ID == "" {
		return "", errors.New("create feed post: no post id returned")
	}
	logutil.Infof("facebook post created: post_id=%s", res.ID)
	return res.ID, nil
}

func (c *Client) feedParams(post relay.FeedPost) (url.Values, error) {
	form := url.Values{}
	for k, v := range post.Params {
		if _, denied := c.denylist[strings.ToLower(k)]; denied {
			logutil.Warnf("removing forbidden feed parameter %q", k)
			continue
		}
		form.Set(k, v)
	}
	form.Set("message", post.Message)
	if post.Link != "" {
		form.Set("link", post.Link)
	}
	if post.CallToAction != nil {
		cta, err := callToAction(*post.CallToAction)
		if err != nil {
			return nil, err
		}
		form.Set("call_to_action", cta)
	}
	return form, nil
}

func callToAction(cta relay.CallToAction) (string, error) {
	if cta.Type == "" {
		cta.Type = relay.DefaultCallToActionType
	}
	if cta.Link == "" {
		return "", relay.ValidationError{Provider: providerName, Reason: "call to action needs a link"}
	}
	value := map[string]string{"link": cta.Link}
	if cta.AppLink != "" {
		value["app_link"] = cta.AppLink
	}
	data, err := json.Marshal(map[string]any{"type": strings.ToUpper(cta.Type), "value": value})
	if err != nil {
		return "", fmt.Errorf("encode call to action: %w", err)
	}
	return string(data), nil
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
