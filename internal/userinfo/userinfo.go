// Package userinfo exchanges an opaque access token for the caller's
// UserIdentity at the identity provider's userinfo endpoint.
package userinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/oidc-bearer-go/identity"
	"golang.org/x/oauth2"
)

var (
	// ErrFetchFailed covers transport errors and non-success statuses other than 404.
	ErrFetchFailed = errors.New("userinfo: fetch failed")
	// ErrUserNotFound covers 404 and 2xx responses without a usable document.
	ErrUserNotFound = errors.New("userinfo: user not found")
)

// maxBodyBytes caps the userinfo document size.
const maxBodyBytes = 1 << 20

// Client performs the userinfo round trip. It holds no per-request state and
// is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	convention identity.CaseConvention
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the round trip.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithCaseConvention sets the expected key spelling of the response body.
func WithCaseConvention(c identity.CaseConvention) Option {
	return func(cl *Client) { cl.convention = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// New returns a Client for the given absolute userinfo endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		convention: identity.SnakeCase,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch sends exactly one GET to the userinfo endpoint with token as the
// bearer credential. There is no retry and no caching.
func (c *Client) Fetch(ctx context.Context, token string) (*identity.UserIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.DebugContext(ctx, "userinfo.fetch.transport_error", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		c.log.DebugContext(ctx, "userinfo.fetch.status", slog.Int("status", res.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, res.StatusCode)
	}

	if ct := res.Header.Get("Content-Type"); ct != "" {
		mt, err := contenttype.ParseMediaType(ct)
		if err != nil || !isJSON(mt) {
			c.log.DebugContext(ctx, "userinfo.fetch.content_type", slog.String("content_type", ct))
			return nil, fmt.Errorf("%w: unexpected content type %q", ErrUserNotFound, ct)
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	u, err := identity.Decode(body, c.convention)
	if err != nil {
		c.log.DebugContext(ctx, "userinfo.fetch.decode", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	return u, nil
}

func isJSON(mt contenttype.MediaType) bool {
	return mt.Type == "application" && (mt.Subtype == "json" || strings.HasSuffix(mt.Subtype, "+json"))
}
