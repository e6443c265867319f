package graph

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blacktop/blogrelay/internal/logutil"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v23.0"

	providerName      = "graph"
	requestTimeout    = 30 * time.Second
	maxErrorBodyBytes = 4 << 10
	maxBodyBytes      = 1 << 20
)

var _ relay.TokenResolver = (*Client)(nil)

// Config holds the settings shared by every Graph API call of one platform client.
type Config struct {
	BaseURL string
	Version string
	// Token is the statically configured token, also the fallback when a page token cannot be resolved.
	Token string
	// AppSecret, when set, signs every call with appsecret_proof.
	AppSecret string
	Timeout   time.Duration
	// LookupRetries bounds retries of the idempotent page token lookup.
	LookupRetries int
}

// Client performs authenticated Graph API requests. It holds no per-request token state:
// every call receives the token it must use, and container calls are never short-circuited
// by the outcome of earlier publications.
type Client struct {
	endpoint  string
	token     string
	appSecret string
	http      *http.Client
	lookups   failsafe.Executor[[]byte]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// New constructs a Graph API client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, relay.MissingEnvError{Provider: providerName, Variables: []string{"META_ACCESS_TOKEN"}}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = requestTimeout
	}
	if cfg.LookupRetries < 0 {
		cfg.LookupRetries = 0
	}

	c := &Client{
		endpoint:  strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.Version, "/"),
		token:     cfg.Token,
		appSecret: strings.TrimSpace(cfg.AppSecret),
		http:      &http.Client{Timeout: cfg.Timeout},
	}

	// Only reads are retried; a retried create or publish could duplicate a post.
	c.lookups = failsafe.With[[]byte](retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool { return Retryable(err) }).
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithJitterFactor(0.1).
		WithMaxRetries(cfg.LookupRetries).
		Build())

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the statically configured token.
func (c *Client) Token() string { return c.token }

// Get issues GET /{path} with params and the given token, decoding the JSON answer into out.
func (c *Client) Get(ctx context.Context, path, token string, params url.Values, out any) error {
	return c.exec(ctx, nil, http.MethodGet, path, token, params, out)
}

// Post issues a form encoded POST /{path}, decoding the JSON answer into out.
func (c *Client) Post(ctx context.Context, path, token string, form url.Values, out any) error {
	return c.exec(ctx, nil, http.MethodPost, path, token, form, out)
}

// exec runs one call, through executor when one is given.
func (c *Client) exec(ctx context.Context, executor failsafe.Executor[[]byte], method, path, token string, params url.Values, out any) error {
	var body []byte
	var err error
	if executor != nil {
		body, err = executor.WithContext(ctx).Get(func() ([]byte, error) {
			return c.do(ctx, method, path, token, params)
		})
	} else {
		body, err = c.do(ctx, method, path, token, params)
	}
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, params url.Values) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values[k] = v
	}
	values.Set("access_token", token)
	if c.appSecret != "" {
		values.Set("appsecret_proof", appSecretProof(c.appSecret, token))
	}

	target := c.endpoint + "/" + strings.TrimLeft(path, "/")
	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, target+"?"+values.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, decodeAPIError(resp.StatusCode, data)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return data, nil
}

func appSecretProof(secret, token string) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func decodeAPIError(status int, body []byte) *relay.APIError {
	apiErr := &relay.APIError{Status: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	}
	return apiErr
}

// Retryable reports whether err is a transport failure, a timeout or a server side error.
// Client errors (4xx other than 429) are not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *relay.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// PageAccessToken looks up the page specific token for pageID using the static token.
func (c *Client) PageAccessToken(ctx context.Context, pageID string) (string, error) {
	var page struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	}
	params := url.Values{"fields": {"access_token,name,id"}}
	if err := c.exec(ctx, c.lookups, http.MethodGet, pageID, c.token, params, &page); err != nil {
		return "", &relay.AuthError{PageID: pageID, Err: err}
	}
	if page.AccessToken == "" {
		return "", &relay.AuthError{PageID: pageID, Err: errors.New("no access_token in page data")}
	}
	logutil.Debugf("page access token found: page_id=%s name=%q", pageID, page.Name)
	return page.AccessToken, nil
}

// ResolveAccount returns the page token for pageID, falling back to the static token
// when the lookup fails. The fallback is logged, not returned as an error.
func (c *Client) ResolveAccount(ctx context.Context, pageID string) relay.Account {
	if strings.TrimSpace(pageID) == "" {
		return relay.Account{Token: c.token}
	}
	token, err := c.PageAccessToken(ctx, pageID)
	if err != nil {
		logutil.Warnf("could not resolve page access token, using configured token: %v", err)
		return relay.Account{ID: pageID, Token: c.token}
	}
	return relay.Account{ID: pageID, Token: token}
}
