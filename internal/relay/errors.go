package relay

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned for media requests the platform would reject outright.
var ErrInvalidInput = errors.New("invalid input")

// FailureReason is a stable label for why a publication stopped.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonContainerCreate  FailureReason = "container_create_error"
	ReasonContainerProcess FailureReason = "container_processing_error"
	ReasonPublish          FailureReason = "publish_error"
	ReasonTimeout          FailureReason = "timeout"
	ReasonCancelled        FailureReason = "cancelled"
	ReasonCarouselChild    FailureReason = "carousel_child_error"
	ReasonInvalidInput     FailureReason = "invalid_input"
	ReasonAsset            FailureReason = "asset_error"
	ReasonFeedPost         FailureReason = "feed_post_error"
)

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures malformed events and media requests.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// APIError is a non-2xx answer from the remote Graph API.
type APIError struct {
	Status  int
	Body    string
	Message string
	Type    string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph api returned status %d: %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("graph api returned status %d", e.Status)
}

// AuthError reports a failed page token lookup. It is logged, never surfaced to callers.
type AuthError struct {
	PageID string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("resolve page token for %s: %v", e.PageID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError is returned when a container never finished within the attempt budget.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %d attempts", e.Attempts)
}

// CarouselChildError reports the carousel item whose container could not be created.
type CarouselChildError struct {
	Index int
	Err   error
}

func (e *CarouselChildError) Error() string {
	return fmt.Sprintf("carousel child %d: %v", e.Index, e.Err)
}

func (e *CarouselChildError) Unwrap() error { return e.Err }
