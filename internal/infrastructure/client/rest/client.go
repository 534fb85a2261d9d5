// Package rest is the JSON-over-HTTP transport shared by the allocation API clients.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ordernum/internal/core/apperror"
	appctx "ordernum/internal/core/context"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Client performs JSON requests against one base URL.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// New creates a client for baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do sends a request and reads the whole response.
// Only transport failures are returned as errors; any HTTP status is a Response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if trace := appctx.GetTrace(ctx); trace != nil {
		req.Header.Set(appctx.HeaderTraceID, trace.TraceID)
		req.Header.Set(appctx.HeaderRequestID, trace.RequestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// ErrorFromResponse converts a non-2xx response into an AppError, keeping the
// server's code, message and details when the body is an error document.
func ErrorFromResponse(resp *Response) *apperror.AppError {
	var doc struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	_ = json.Unmarshal(resp.Body, &doc)

	message := doc.Message
	if message == "" {
		message = doc.Error
	}
	code := doc.Code
	if code == "" {
		code = fmt.Sprintf("HTTP_%d", resp.Status)
	}

	return &apperror.AppError{
		Code:       code,
		Message:    message,
		Details:    doc.Details,
		HTTPStatus: resp.Status,
	}
}
