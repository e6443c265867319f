package sanity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blacktop/blogrelay/internal/relay"
)

const (
	providerName = "sanity"
	blogType     = "blog"
)

var (
	// ErrNotBlog marks documents of another type. They are acknowledged and dropped.
	ErrNotBlog = errors.New("document type is not a blog post")
	// ErrNotPublished marks drafts and unpublished documents. They are acknowledged and dropped.
	ErrNotPublished = errors.New("post is not published")
)

type document struct {
	ID               string  `json:"_id"`
	Rev              string  `json:"_rev"`
	Type             string  `json:"_type"`
	PublishedAt      *string `json:"publishedAt"`
	Title            string  `json:"title"`
	SmallDescription string  `json:"smallDescription"`
	Slug             struct {
		Current string `json:"current"`
	} `json:"slug"`
	TitleImage struct {
		Asset struct {
			Ref string `json:"_ref"`
		} `json:"asset"`
	} `json:"titleImage"`
}

// ParseEvent normalizes a webhook payload into a relay.PostEvent.
// It returns ErrNotBlog or ErrNotPublished for events to drop and a
// relay.ValidationError for malformed payloads.
func ParseEvent(body []byte) (relay.PostEvent, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return relay.PostEvent{}, relay.ValidationError{Provider: providerName, Reason: fmt.Sprintf("decode payload: %v", err)}
	}

	if doc.Type != blogType {
		return relay.PostEvent{}, ErrNotBlog
	}
	if doc.PublishedAt == nil || strings.TrimSpace(*doc.PublishedAt) == "" {
		return relay.PostEvent{}, ErrNotPublished
	}
	publishedAt, err := parseTime(*doc.PublishedAt)
	if err != nil {
		return relay.PostEvent{}, relay.ValidationError{Provider: providerName, Reason: fmt.Sprintf("publishedAt %q: %v", *doc.PublishedAt, err)}
	}

	var missing []string
	if strings.TrimSpace(doc.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(doc.Slug.Current) == "" {
		missing = append(missing, "slug.current")
	}
	if strings.TrimSpace(doc.TitleImage.Asset.Ref) == "" {
		missing = append(missing, "titleImage.asset._ref")
	}
	if len(missing) > 0 {
		return relay.PostEvent{}, relay.ValidationError{Provider: providerName, Reason: "missing " + strings.Join(missing, ", ")}
	}

	return relay.PostEvent{
		ID:           doc.ID,
		Revision:     doc.Rev,
		Title:        doc.Title,
		BodyExcerpt:  doc.SmallDescription,
		Slug:         doc.Slug.Current,
		ImageRef:     doc.TitleImage.Asset.Ref,
		DocumentType: doc.Type,
		PublishedAt:  &publishedAt,
	}, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format")
}
