package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	yhttp "github.com/Atticdm/Yeet/internal/http"
	"github.com/Atticdm/Yeet/internal/media"
	"github.com/rs/zerolog"
)

// Options configures a Resolver.
type Options struct {
	// Endpoint is the full metadata URL, e.g. https://api.example.com/get-video-link.
	Endpoint string

	// Client performs the request. Default: a client with http.DefaultOptions.
	Client *yhttp.Client

	Logger zerolog.Logger
}

// Resolver turns a video page URL into media metadata by asking the backend.
type Resolver struct {
	endpoint string
	client   *yhttp.Client
	log      zerolog.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	if opts.Client == nil {
		opts.Client = yhttp.NewClient(yhttp.DefaultOptions())
	}
	return &Resolver{
		endpoint: opts.Endpoint,
		client:   opts.Client,
		log:      opts.Logger,
	}
}

type request struct {
	URL     string            `json:"url"`
	Cookies map[string]string `json:"user_cookies_json,omitempty"`
}

type errorReply struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Resolve asks the backend for the metadata of pageURL. Cookies, when
// present, are forwarded for authenticated content. It makes a single
// attempt.
func (r *Resolver) Resolve(ctx context.Context, pageURL string, cookies map[string]string) (*media.Metadata, error) {
	if err := checkPageURL(pageURL); err != nil {
		return nil, err
	}

	reply, err := r.client.PostJSON(ctx, r.endpoint, request{URL: pageURL, Cookies: cookies})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", media.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", media.ErrTransport, err)
	}

	r.log.Debug().
		Int("status", reply.StatusCode).
		Str("page_url", pageURL).
		Bool("with_cookies", len(cookies) > 0).
		Msg("metadata reply")

	if reply.StatusCode != http.StatusOK {
		return nil, decodeError(reply)
	}

	var meta media.Metadata
	if err := json.Unmarshal(reply.Body, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", media.ErrInvalidResponse, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrInvalidResponse, err)
	}
	return &meta, nil
}

func checkPageURL(pageURL string) error {
	raw := strings.TrimSpace(pageURL)
	if raw == "" {
		return fmt.Errorf("%w: empty url", media.ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", media.ErrInvalidInput, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute url", media.ErrInvalidInput, pageURL)
	}
	return nil
}

func decodeError(reply *yhttp.Reply) error {
	var body errorReply
	if err := json.Unmarshal(reply.Body, &body); err != nil || body.Error == "" {
		if err == nil {
			err = errors.New("missing error message")
		}
		return fmt.Errorf("%w: status %d: %w", media.ErrInvalidResponse, reply.StatusCode, err)
	}
	return &media.BackendError{
		Status:  reply.StatusCode,
		Message: body.Error,
		Code:    body.ErrorCode,
	}
}
