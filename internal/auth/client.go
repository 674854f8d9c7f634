package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is a bearer-authenticated HTTP client for Graph-style vendor APIs.
// It resolves a token per request from its TokenSource, applies an outbound
// token-bucket throttle so a burst of actions cannot trip vendor-side
// throttling, and decodes JSON bodies on demand.
//
// A nil *Client is tolerated by its methods (they return ErrNoCredential) so
// handlers can call through without nil checks when credential bootstrap
// failed at startup.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	scope   string
	baseURL string
	limiter *rate.Limiter
}

// ErrNoCredential is returned by a nil Client, or one constructed without a
// token source. Handlers translate it into a 401 error result.
var ErrNoCredential = fmt.Errorf("no credential available")

// ClientOptions configures NewClient.
type ClientOptions struct {
	// BaseURL prefixes relative request paths, e.g. the Graph v1.0 endpoint.
	BaseURL string
	// Scope requested for every token resolution.
	Scope string
	// Timeout for individual outbound requests. Defaults to 30s.
	Timeout time.Duration
	// RPS/Burst configure the outbound throttle. RPS <= 0 disables it.
	RPS   float64
	Burst int
}

// NewClient builds an authenticated client over the given token source.
func NewClient(tokens TokenSource, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	var lim *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		tokens:  tokens,
		scope:   opts.Scope,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: lim,
	}
}

// Response is the decoded outcome of an authenticated call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the body into a generic map. Empty bodies yield an empty map.
func (r *Response) JSON() (map[string]any, error) {
	out := map[string]any{}
	if len(r.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}
	return out, nil
}

// Get performs an authenticated GET against path (absolute, or relative to
// the base URL).
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body)
}

// Request performs an authenticated call. The bearer token is resolved from
// the token source per request (the source is expected to cache), the
// outbound throttle is awaited, and the full body is read into memory.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	if c == nil || c.tokens == nil {
		return nil, ErrNoCredential
	}

	token, err := c.tokens.Token(ctx, c.scope)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// Preflight validates the credential by resolving a token for the default
// scope. It is called once at startup; a failure is reported to the caller
// for logging but must not prevent the gateway from serving actions that do
// not need this vendor.
func (c *Client) Preflight(ctx context.Context) error {
	if c == nil || c.tokens == nil {
		return ErrNoCredential
	}
	_, err := c.tokens.Token(ctx, c.scope)
	return err
}
