package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContainerStatus(t *testing.T) {
	tests := map[string]ContainerStatus{
		"PENDING":       StatusPending,
		"in_progress":   StatusInProgress,
		" FINISHED ":    StatusFinished,
		"PUBLISHED":     StatusFinished,
		"ERROR":         StatusError,
		"EXPIRED":       StatusExpired,
		"":              StatusUnknown,
		"SOMETHING_NEW": StatusUnknown,
	}
	for code, want := range tests {
		assert.Equal(t, want, ParseContainerStatus(code), code)
	}
}

func TestContainerStatusTerminal(t *testing.T) {
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusExpired.Terminal())
	for _, s := range []ContainerStatus{StatusUnknown, StatusPending, StatusInProgress, StatusFinished} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestMediaKindString(t *testing.T) {
	assert.Equal(t, "carousel_child", KindCarouselChild.String())
	assert.Equal(t, "reel", KindReel.String())
	assert.Equal(t, "unknown", MediaKind(42).String())
}

func TestFailed(t *testing.T) {
	res := Failed(ReasonTimeout, &TimeoutError{Attempts: 12})
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.FailedIndex)
	assert.Equal(t, "timeout after 12 attempts", res.Error())
	assert.Empty(t, PublishResult{Success: true}.Error())
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")

	childErr := &CarouselChildError{Index: 3, Err: cause}
	assert.ErrorIs(t, childErr, cause)
	assert.EqualError(t, childErr, "carousel child 3: boom")

	authErr := &AuthError{PageID: "1789", Err: cause}
	assert.ErrorIs(t, authErr, cause)

	assert.EqualError(t, MissingEnvError{Provider: "graph", Variables: []string{"A", "B"}}, "graph credentials not configured (missing A, B)")
	assert.EqualError(t, &APIError{Status: 400, Message: "bad", Code: 100}, "graph api returned status 400: bad (code 100)")
	assert.EqualError(t, &APIError{Status: 502}, "graph api returned status 502")
}
