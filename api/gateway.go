// Package api is the single outbound call path to the library service.
//
// Every request is built the same way: the current bearer credential is
// attached when one exists (anonymous calls are allowed), and every response
// passes through the same interception: a 401, from any endpoint, invalidates
// the session exactly once via the configured Invalidator. All other statuses
// pass through to the caller unmodified.
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
	"strings"
	"time"
)

// TokenSource yields the current bearer credential, or "" when anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Invalidator is called when the server confirms the credential is invalid
// (a 401 on any endpoint). Implementations must be idempotent.
type Invalidator interface {
	Invalidate()
}

// CallInfo describes one completed gateway call for observers.
type CallInfo struct {
	Method  string
	Path    string
	Status  int // 0 on transport failure
	Elapsed time.Duration
	Err     error
}

// Observer receives a callback after every gateway call, success or failure.
type Observer interface {
	ObserveCall(ctx context.Context, call CallInfo)
}

// ClientConfig configures a gateway Client.
type ClientConfig struct {
	// BaseURL is the service root, e.g. "http://localhost:8081".
	BaseURL string

	// HTTPClient overrides the underlying client (default: 30s timeout).
	HTTPClient *http.Client

	// Tokens yields the credential attached to outgoing calls. May be nil
	// for a purely anonymous client.
	Tokens TokenSource

	// OnAuthInvalid is invoked on any 401 response. May be nil.
	OnAuthInvalid Invalidator

	// Observer receives per-call telemetry. May be nil.
	Observer Observer

	Logger *slog.Logger
}

// Client is the HTTP gateway.
type Client struct {
	base          *url.URL
	http          *http.Client
	tokens        TokenSource
	onAuthInvalid Invalidator
	observer      Observer
	logger        *slog.Logger
}

// NewClient creates a gateway client for the given base URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:          base,
		http:          httpClient,
		tokens:        cfg.Tokens,
		onAuthInvalid: cfg.OnAuthInvalid,
		observer:      cfg.Observer,
		logger:        logger,
	}, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get issues a GET request. query may be nil; out may be nil to discard the body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body. body and out may be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	status, err := c.roundTrip(ctx, method, path, query, body, out)
	if c.observer != nil {
		c.observer.ObserveCall(ctx, CallInfo{
			Method:  method,
			Path:    path,
			Status:  status,
			Elapsed: time.Since(start),
			Err:     err,
		})
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	op := method + " " + path

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("api: encode %s body: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return 0, fmt.Errorf("api: build %s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			// A broken credential store does not block the call; the
			// request simply goes out anonymous.
			c.logger.Warn("reading credential failed", "op", op, "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onAuthInvalid != nil {
			c.onAuthInvalid.Invalidate()
		}
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: decodeMessage(data)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: decodeMessage(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("api: decode %s response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

// decodeMessage pulls the optional human-readable "message" field out of an
// error body. Absence yields "" and the caller's fallback applies.
func decodeMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}
