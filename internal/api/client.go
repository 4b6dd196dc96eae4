// Package api is the HTTP adapter for the mail backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// basePath prefixes every backend route.
const basePath = "/api/v1"

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// UnauthorizedEvent is emitted for every 401 response.
type UnauthorizedEvent struct {
	Method    string
	Path      string
	RequestID string
}

// Client is a thin HTTP client for the mail backend. It attaches the
// bearer token, turns error responses into typed errors, and announces
// 401 responses. It never retries.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(UnauthorizedEvent)
	nextID   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend rooted at baseURL
// (e.g. http://localhost:8000). tokens may be nil.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		handlers:   make(map[int]func(UnauthorizedEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to run on every 401 response, before the
// failing call returns. It returns a function that removes fn.
func (c *Client) OnUnauthorized(fn func(UnauthorizedEvent)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *Client) emitUnauthorized(ev UnauthorizedEvent) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(UnauthorizedEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.handlers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// request describes one backend call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string

	// token overrides the TokenSource when non-empty.
	token string
}

// do sends a JSON request and decodes a JSON response into result.
// body and result may be nil.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	req := request{method: method, path: path, query: query}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return c.send(ctx, req, result)
}

// send executes req and handles auth, error mapping, and decoding.
func (c *Client) send(ctx context.Context, r request, result interface{}) error {
	u := c.baseURL + basePath + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	token := r.token
	if token == "" && c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			"method", r.method, "path", r.path, "request_id", requestID, "error", err)
		return fmt.Errorf("executing request %s %s: %w", r.method, r.path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	c.logger.Debug("api request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.emitUnauthorized(UnauthorizedEvent{
			Method:    r.method,
			Path:      r.path,
			RequestID: requestID,
		})
		return &AuthError{Method: r.method, Path: r.path, Detail: parseDetail(respBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Method: r.method,
			Path:   r.path,
			Status: resp.StatusCode,
			Detail: parseDetail(respBody),
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", r.method, r.path, err)
	}

	return nil
}
