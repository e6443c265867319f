package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/dispatch"
	"github.com/blacktop/blogrelay/internal/relay/sanity"
	"github.com/gin-gonic/gin"
)

const (
	maxBodyBytes      = 1 << 20
	idempotencyHeader = "Idempotency-Key"
)

type platformResult struct {
	Success     bool   `json:"success"`
	ID          string `json:"id,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	FailedIndex *int   `json:"failed_index,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newPlatformResult(res relay.PublishResult) platformResult {
	out := platformResult{
		Success:     res.Success,
		ID:          res.MediaID,
		ContainerID: res.ContainerID,
		Reason:      string(res.Reason),
		Error:       res.Error(),
	}
	if res.FailedIndex >= 0 {
		idx := res.FailedIndex
		out.FailedIndex = &idx
	}
	return out
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := readBody(c.Request.Body, maxBodyBytes)
	if err != nil {
		s.metrics.WebhookEvent("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	err = sanity.VerifySignature(sanity.SignatureInput{
		Secret:    s.cfg.WebhookSecret,
		Signature: c.GetHeader(sanity.SignatureHeader),
		Shared:    c.GetHeader(sanity.SecretHeader),
		Body:      body,
		Now:       s.now(),
	})
	if err != nil {
		logutil.Warnf("webhook signature rejected: %v", err)
		s.metrics.WebhookEvent("rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid signature"})
		return
	}

	ev, err := sanity.ParseEvent(body)
	switch {
	case errors.Is(err, sanity.ErrNotBlog):
		s.metrics.WebhookEvent("ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Document type is not a blog post."})
		return
	case errors.Is(err, sanity.ErrNotPublished):
		s.metrics.WebhookEvent("ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Post is not published."})
		return
	case err != nil:
		logutil.Errorf("failed to normalize webhook payload: %v", err)
		s.metrics.WebhookEvent("error")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error processing post"})
		return
	}

	key := deliveryKey(c.GetHeader(idempotencyHeader), ev)
	if key != "" && s.dedupe != nil {
		first, err := s.dedupe.Claim(c.Request.Context(), key, s.cfg.DedupeTTL)
		if err != nil {
			logutil.Warnf("dedupe unavailable, dispatching anyway: %v", err)
		} else if !first {
			s.metrics.WebhookEvent("duplicate")
			c.JSON(http.StatusOK, gin.H{"message": "Post already processed."})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.DispatchTimeout)
	defer cancel()
	outcome := s.dispatcher.Dispatch(ctx, ev)

	// Nothing went out, so a redelivery is safe.
	if outcome.Failed() && key != "" && s.dedupe != nil {
		if err := s.dedupe.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
			logutil.Warnf("release delivery %s: %v", key, err)
		}
	}

	s.metrics.WebhookEvent("dispatched")
	c.JSON(http.StatusOK, gin.H{
		"message": outcomeMessage(outcome),
		"results": gin.H{
			dispatch.PlatformFeed:  newPlatformResult(outcome.Feed),
			dispatch.PlatformMedia: newPlatformResult(outcome.Media),
		},
	})
}

func outcomeMessage(o dispatch.Outcome) string {
	switch {
	case o.Failed():
		return "Post could not be published"
	case o.Partial():
		return "Post partially published"
	default:
		return "Post processed successfully"
	}
}

func deliveryKey(header string, ev relay.PostEvent) string {
	if header != "" {
		return header
	}
	if ev.ID == "" {
		return ""
	}
	return ev.ID + "@" + ev.Revision
}

func readBody(r io.ReadCloser, limit int64) ([]byte, error) {
	defer r.Close()
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
