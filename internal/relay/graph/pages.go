package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/blacktop/blogrelay/internal/logutil"
)

// Page describes a page reachable with the configured token. Tokens are never kept.
type Page struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Tasks    []string `json:"tasks,omitempty"`
	HasToken bool     `json:"has_token"`
}

type pageData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Tasks       []string `json:"tasks"`
	AccessToken string   `json:"access_token"`
}

func (p pageData) page() Page {
	return Page{ID: p.ID, Name: p.Name, Category: p.Category, Tasks: p.Tasks, HasToken: p.AccessToken != ""}
}

// Pages lists the pages the configured token manages.
func (c *Client) Pages(ctx context.Context) ([]Page, error) {
	var res struct {
		Data []pageData `json:"data"`
	}
	params := url.Values{"fields": {"id,name,access_token,category,tasks"}}
	if err := c.exec(ctx, c.lookups, http.MethodGet, "me/accounts", c.token, params, &res); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	logutil.Debugf("found %d pages", len(res.Data))

	pages := make([]Page, 0, len(res.Data))
	for _, p := range res.Data {
		pages = append(pages, p.page())
	}
	return pages, nil
}

// PagePermissions resolves the page token for pageID and reads the page with it,
// reporting the tasks that token may perform. A failed token lookup is returned
// as a *relay.AuthError.
func (c *Client) PagePermissions(ctx context.Context, pageID string) (Page, error) {
	token, err := c.PageAccessToken(ctx, pageID)
	if err != nil {
		return Page{}, err
	}
	var res pageData
	params := url.Values{"fields": {"id,name,category,access_token,tasks"}}
	if err := c.exec(ctx, c.lookups, http.MethodGet, pageID, token, params, &res); err != nil {
		return Page{}, fmt.Errorf("read page %s: %w", pageID, err)
	}
	return res.page(), nil
}
