package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
)

// maxReplySize bounds the body read for JSON replies.
const maxReplySize = 1 << 20

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 4
	MaxIdleConnsPerHost int

	// Timeout bounds a whole request including reading the body.
	// Zero disables it, which is what streaming downloads want.
	// Default: 30s
	Timeout time.Duration

	// ResponseHeaderTimeout bounds the wait for the first response byte.
	// Default: 30s
	ResponseHeaderTimeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost:   4,
		Timeout:               30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		UserAgent:             "yeet/1.0",
	}
}

// StatusError is returned for unexpected HTTP status codes. It unwraps to one
// of the common errors when the code has one.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: unexpected status %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return checkStatusCode(e.Code)
}

// Reply is a fully read response.
type Reply struct {
	StatusCode int
	Body       []byte
}

// Stream is an open response body. Callers must close Body.
type Stream struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 when unknown
	ContentType   string
}

// Client is a thin wrapper around net/http with the timeouts the resolver and
// transfer engine need. It never retries.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// PostJSON marshals body, POSTs it to url and reads the reply. Non-2xx replies
// are returned as-is; only transport failures produce an error.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*Reply, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("http: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("http: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("http: read reply: %w", err)
	}

	return &Reply{StatusCode: resp.StatusCode, Body: reply}, nil
}

// Get opens a streaming GET request. A non-2xx status is returned as a
// *StatusError with the body already closed.
func (c *Client) Get(ctx context.Context, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http: create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return &Stream{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return ErrServerError
	default:
		return nil
	}
}
