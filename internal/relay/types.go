package relay

import (
	"context"
	"strings"
	"time"
)

// MediaKind selects how a media container is created and how long it is polled.
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
	KindStory
	KindReel
	KindCarouselChild
	KindCarousel
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindStory:
		return "story"
	case KindReel:
		return "reel"
	case KindCarouselChild:
		return "carousel_child"
	case KindCarousel:
		return "carousel"
	default:
		return "unknown"
	}
}

// MediaItem describes one piece of media to upload. Values are never mutated after construction.
type MediaItem struct {
	Kind      MediaKind
	SourceURL string
	Caption   string
	// ShareToFeed is only sent for reels.
	ShareToFeed bool
	// Video marks story and carousel child items whose source is a video.
	Video bool
}

// Container is a platform-side staging object that must finish processing before publish.
type Container struct {
	ID        string
	Kind      MediaKind
	CreatedAt time.Time
}

// ContainerStatus is the processing state reported by the media platform.
type ContainerStatus int

const (
	StatusUnknown ContainerStatus = iota
	StatusPending
	StatusInProgress
	StatusFinished
	StatusError
	StatusExpired
)

// ParseContainerStatus maps a platform status_code onto ContainerStatus.
func ParseContainerStatus(code string) ContainerStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PENDING":
		return StatusPending
	case "IN_PROGRESS":
		return StatusInProgress
	case "FINISHED", "PUBLISHED":
		return StatusFinished
	case "ERROR":
		return StatusError
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnknown
	}
}

func (s ContainerStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	case StatusError:
		return "error"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the container can no longer become ready.
func (s ContainerStatus) Terminal() bool {
	return s == StatusError || s == StatusExpired
}

// PublishResult is the terminal outcome of a single publication.
type PublishResult struct {
	Success     bool
	MediaID     string
	ContainerID string
	Reason      FailureReason
	// FailedIndex is the failing carousel child, -1 otherwise.
	FailedIndex int
	Attempts    int
	Err         error
}

// Failed builds an unsuccessful result.
func Failed(reason FailureReason, err error) PublishResult {
	return PublishResult{Reason: reason, FailedIndex: -1, Err: err}
}

// Error returns the failure message, or an empty string on success.
func (r PublishResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// PostEvent is a normalized "new blog post" notification.
type PostEvent struct {
	ID           string
	Revision     string
	Title        string
	BodyExcerpt  string
	Slug         string
	ImageRef     string
	DocumentType string
	PublishedAt  *time.Time
}

// Account carries the id and resolved token for one platform call site.
type Account struct {
	ID    string
	Token string
}

// FeedPost is a direct page-feed publication.
type FeedPost struct {
	Message string
	Link    string
	// Params are additional fields sent with the post; denylisted keys are removed.
	Params       map[string]string
	CallToAction *CallToAction
}

// DefaultCallToActionType is used when a CallToAction has no Type.
const DefaultCallToActionType = "BUY_NOW"

// CallToAction is the button attached to a feed post.
type CallToAction struct {
	Type    string
	Link    string
	AppLink string
}

// MediaClient drives the container lifecycle on the media platform.
type MediaClient interface {
	CreateContainer(ctx context.Context, acct Account, item MediaItem) (string, error)
	CreateCarouselContainer(ctx context.Context, acct Account, childIDs []string, caption string) (string, error)
	ContainerStatus(ctx context.Context, acct Account, containerID string) (ContainerStatus, error)
	Publish(ctx context.Context, acct Account, containerID string) (string, error)
}

// FeedClient publishes synchronously to a page feed.
type FeedClient interface {
	CreateFeedPost(ctx context.Context, acct Account, post FeedPost) (string, error)
}

// TokenResolver resolves the token page-scoped calls should use.
// Implementations fall back to the configured token instead of failing.
type TokenResolver interface {
	ResolveAccount(ctx context.Context, pageID string) Account
}

// AssetResolver turns an opaque content-store image reference into a fetchable URL.
type AssetResolver interface {
	AssetURL(ref string) (string, error)
}
