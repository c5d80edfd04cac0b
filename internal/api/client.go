// Package api is the shell's resilient backend client. Every logical call
// runs with a bounded deadline, a bounded retry policy gated by a retry
// condition, and transparent bearer-token injection. Failures come back as
// classified *Error values, never as hangs or panics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// TokenSource supplies the current credential and invalidates it when the
// backend reports it dead. Reads must not perform network calls.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// RetryCondition decides whether a failed attempt is re-issued.
type RetryCondition func(err error) bool

// DefaultRetryCondition retries transient failures only: network errors,
// 5xx, 408, 429, and client-side timeouts. Other 4xx surface immediately.
func DefaultRetryCondition(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = 250 * time.Millisecond
	defaultBackoffCap  = 5 * time.Second
)

// Client issues classified, retried, timed-out HTTP calls against a backend
// API. Construct with New; dependencies are injected, nothing is global.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource

	timeout     time.Duration
	maxRetries  uint64
	backoffBase time.Duration
	backoffCap  time.Duration
	retryOn     RetryCondition

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (test doubles).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request deadline applied when the caller's
// context carries none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries bounds the number of re-issues per logical call.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryCondition replaces the baseline retry predicate.
func WithRetryCondition(cond RetryCondition) Option {
	return func(c *Client) { c.retryOn = cond }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "api-client") }
}

// New creates a backend client. tokens may be nil for a client that only
// ever issues unauthenticated calls.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		tokens:      tokens,
		timeout:     defaultTimeout,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		retryOn:     DefaultRetryCondition,
		logger:      slog.Default().With("component", "api-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one logical HTTP operation.
type Request struct {
	Method string
	Path   string
	Query  map[string]any
	Body   any

	// NoRetry opts a mutating call (login, register) out of the retry
	// policy regardless of how its failure classifies.
	NoRetry bool

	// Timeout overrides the client default for this call.
	Timeout time.Duration
}

// Do performs the request and returns the raw JSON response body. Failures
// are always *Error values; the per-request state machine is
// PENDING → SUCCESS | HTTP_ERROR | TIMEOUT | NETWORK_ERROR, with
// auth-expiry HTTP errors clearing the token source before surfacing.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("marshal request body: %v", err), Code: CodeParse}
		}
		body = b
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	backoff := retry.WithMaxRetries(c.maxRetries,
		retry.WithCappedDuration(c.backoffCap,
			retry.WithJitterPercent(25, retry.NewExponential(c.backoffBase))))

	var result json.RawMessage
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		raw, err := c.attempt(ctx, req, body, timeout)
		if err != nil {
			if !req.NoRetry && c.retryOn(err) {
				c.logger.Warn("request failed, will retry",
					"method", req.Method, "path", req.Path,
					"attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		result = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DoJSON performs the request and decodes the response into dest.
func (c *Client) DoJSON(ctx context.Context, req Request, dest any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Error{Message: fmt.Sprintf("decode response: %v", err), Code: CodeParse}
	}
	return nil
}

// Get fetches a resource into dest.
func (c *Client) Get(ctx context.Context, path string, query map[string]any, dest any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, dest)
}

// Post creates a resource and decodes the response into dest.
func (c *Client) Post(ctx context.Context, path string, body, dest any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, dest)
}

// Put replaces a resource and decodes the response into dest.
func (c *Client) Put(ctx context.Context, path string, body, dest any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, dest)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// attempt performs one HTTP round trip with its own deadline.
func (c *Client) attempt(ctx context.Context, req Request, body []byte, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + req.Path + BuildQuery(req.Query)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, reader)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("build request: %v", err), Code: CodeNetwork}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.GetValidToken(ctx)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("load token: %v", err), Code: CodeNetwork}
		}
		if tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Message: "request timed out", Status: http.StatusRequestTimeout, Code: CodeTimeout}
		}
		if errors.Is(err, context.Canceled) {
			return nil, &Error{Message: "request cancelled", Code: CodeNetwork}
		}
		return nil, &Error{Message: err.Error(), Code: CodeNetwork}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("read response: %v", err), Code: CodeNetwork}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := classifyStatus(resp.StatusCode, raw)
		if apiErr.Code == CodeAuthExpired && c.tokens != nil {
			// The credential is known dead; clear it so no caller ever
			// retries with it. AUTH_EXPIRED is never retried, so this
			// runs once per surfaced error.
			if clearErr := c.tokens.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				c.logger.Error("clear expired tokens", "error", clearErr)
			} else {
				c.logger.Info("cleared expired tokens", "path", req.Path)
			}
		}
		return nil, apiErr
	}

	if len(raw) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}
