// Package opaque implements the bearer scheme for opaque access tokens: the
// token is exchanged at the identity provider's userinfo endpoint and the
// returned account record becomes the caller's identity.
//
// Each call to Authenticate runs the same fixed sequence: extract the
// credential, refuse JWT-shaped credentials, fetch the userinfo document,
// materialize claims, run the host hook, issue the ticket. Nothing is cached
// between calls and no stage is retried.
package opaque

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/claims"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/ggoodman/oidc-bearer-go/hooks"
	"github.com/ggoodman/oidc-bearer-go/identity"
	"github.com/ggoodman/oidc-bearer-go/internal/credential"
	"github.com/ggoodman/oidc-bearer-go/internal/logctx"
	"github.com/ggoodman/oidc-bearer-go/internal/userinfo"
)

// SchemeName is the default name of the opaque scheme.
const SchemeName = "oidc-opaque"

// Failure reasons reported by the scheme.
const (
	ReasonMissingToken = "missing token"
	ReasonWrongScheme  = "wrong scheme: JWT-shaped credential presented to opaque handler"
	ReasonFetchFailed  = "fetch failed"
	ReasonUserNotFound = "user not found"
)

// Option configures a Handler.
type Option func(*config)

type config struct {
	name       string
	marker     string
	hook       hooks.TokenValidatedFunc
	httpClient *http.Client
	convention identity.CaseConvention
	services   func(ctx context.Context) hooks.ServiceLocator
	log        *slog.Logger
}

// WithName overrides the scheme name (default SchemeName).
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithMarker sets the value of the synthesized name and
// authentication-method claims (default claims.DefaultMarker).
func WithMarker(marker string) Option {
	return func(c *config) { c.marker = marker }
}

// WithTokenValidated registers the post-validation hook. It runs exactly once
// per successful authentication and never on failure.
func WithTokenValidated(fn hooks.TokenValidatedFunc) Option {
	return func(c *config) { c.hook = fn }
}

// WithHTTPClient sets the client used for the userinfo round trip.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithCaseConvention sets the key spelling expected from the userinfo
// endpoint (default identity.SnakeCase).
func WithCaseConvention(conv identity.CaseConvention) Option {
	return func(c *config) { c.convention = conv }
}

// WithServices sets how the hook's service locator is obtained from the
// request context. By default, or when fn is nil, the request context itself
// is used.
func WithServices(fn func(ctx context.Context) hooks.ServiceLocator) Option {
	return func(c *config) {
		if fn != nil {
			c.services = fn
		}
	}
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// Handler is the opaque-token scheme. It is immutable after New and safe for
// concurrent use.
type Handler struct {
	name     string
	marker   string
	hook     hooks.TokenValidatedFunc
	services func(ctx context.Context) hooks.ServiceLocator
	userinfo *userinfo.Client
	log      *slog.Logger
}

var _ auth.Scheme = (*Handler)(nil)

// New builds the scheme. The userinfo endpoint is resolved once here; a
// missing base address is reported as endpoints.ErrMissingBaseAddress.
func New(ep endpoints.Endpoints, opts ...Option) (*Handler, error) {
	cfg := &config{
		name:       SchemeName,
		marker:     claims.DefaultMarker,
		hook:       hooks.NoOp[*hooks.ValidatedContext],
		httpClient: http.DefaultClient,
		convention: identity.SnakeCase,
		services:   func(ctx context.Context) hooks.ServiceLocator { return ctx },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	u, err := ep.UserinfoEndpoint()
	if err != nil {
		return nil, err
	}

	log := logctx.Wrap(cfg.log)
	return &Handler{
		name:     cfg.name,
		marker:   cfg.marker,
		hook:     cfg.hook,
		services: cfg.services,
		userinfo: userinfo.New(u.String(),
			userinfo.WithHTTPClient(cfg.httpClient),
			userinfo.WithCaseConvention(cfg.convention),
			userinfo.WithLogger(log),
		),
		log: log,
	}, nil
}

// Name returns the scheme name.
func (h *Handler) Name() string { return h.name }

// Authenticate authenticates r from its Authorization header.
func (h *Handler) Authenticate(r *http.Request) (auth.Result, error) {
	return h.AuthenticateHeader(r.Context(), r.Header.Get("Authorization"))
}

// AuthenticateHeader authenticates an Authorization header value.
//
// Credential and provider problems come back as a failed Result. The error
// is non-nil only for faults: a userinfo document without a subject
// (auth.ErrProtocolViolation) or a failing hook (*hooks.HookError).
func (h *Handler) AuthenticateHeader(ctx context.Context, header string) (auth.Result, error) {
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: h.name})

	tok, shape := credential.Classify(header)
	switch shape {
	case credential.Missing:
		h.log.DebugContext(ctx, "auth.opaque.missing_token")
		return auth.Fail(auth.CodeMissingToken, ReasonMissingToken), nil
	case credential.JWT:
		h.log.DebugContext(ctx, "auth.opaque.wrong_scheme")
		return auth.Fail(auth.CodeWrongScheme, ReasonWrongScheme), nil
	}

	user, err := h.userinfo.Fetch(ctx, tok)
	if err != nil {
		h.log.InfoContext(ctx, "auth.opaque.fetch.fail", slog.String("err", err.Error()))
		if errors.Is(err, userinfo.ErrUserNotFound) {
			return auth.Fail(auth.CodeUserNotFound, ReasonUserNotFound), nil
		}
		return auth.Fail(auth.CodeFetchFailed, ReasonFetchFailed), nil
	}

	cl, err := claims.Materialize(user, h.marker)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.opaque.protocol_violation", slog.String("err", err.Error()))
		return auth.Result{}, err
	}
	id := auth.NewIdentity(h.name, cl)
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: h.name, Subject: *user.Subject})

	vc := &hooks.ValidatedContext{Scheme: h.name, User: user, Identity: id, Services: h.services(ctx)}
	if err := hooks.Dispatch(ctx, h.name, h.hook, vc); err != nil {
		h.log.ErrorContext(ctx, "auth.opaque.hook.fail", slog.String("err", err.Error()))
		return auth.Result{}, err
	}

	h.log.DebugContext(ctx, "auth.opaque.ok", slog.Int("claims", len(id.Claims)))
	return auth.Success(&auth.Ticket{Scheme: h.name, Identity: id}), nil
}
