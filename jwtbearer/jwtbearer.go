// Package jwtbearer implements the bearer scheme for signed JWT access tokens
// issued by the identity provider. Tokens are verified locally against the
// provider's key set; the issuer must be the provider's authority endpoint.
package jwtbearer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/claims"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/ggoodman/oidc-bearer-go/hooks"
	"github.com/ggoodman/oidc-bearer-go/internal/credential"
	"github.com/ggoodman/oidc-bearer-go/internal/jwtauth"
	"github.com/ggoodman/oidc-bearer-go/internal/logctx"
	"github.com/golang-jwt/jwt/v5"
)

// SchemeName is the default name of the JWT scheme.
const SchemeName = "oidc-jwt"

// Failure reasons reported by the scheme.
const (
	ReasonMissingToken = "missing token"
	ReasonWrongScheme  = "wrong scheme: opaque credential presented to JWT handler"
	ReasonInvalidToken = "invalid token"
)

// ValidatedContext is handed to the JWT scheme's hook after the token
// verified. It lives only for the duration of the hook call.
type ValidatedContext struct {
	Scheme string
	// Claims are the verified token claims.
	Claims jwt.MapClaims
	// Identity is the in-progress identity. Claims added here end up in the ticket.
	Identity *auth.Identity
	Services hooks.ServiceLocator
}

// TokenValidatedFunc is the hook type of the JWT scheme.
type TokenValidatedFunc = hooks.Func[*ValidatedContext]

// Option configures a Handler.
type Option func(*config)

type config struct {
	name        string
	marker      string
	audiences   []string
	allowedAlgs []string
	leeway      time.Duration
	httpClient  *http.Client
	hook        TokenValidatedFunc
	services    func(ctx context.Context) hooks.ServiceLocator
	log         *slog.Logger
}

// WithName overrides the scheme name (default SchemeName).
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithMarker sets the value of the synthesized name and
// authentication-method claims.
func WithMarker(marker string) Option {
	return func(c *config) { c.marker = marker }
}

// WithAudience requires the aud claim to contain at least one of auds. By
// default the audience is not validated.
func WithAudience(auds ...string) Option {
	return func(c *config) { c.audiences = append([]string(nil), auds...) }
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to RS256 and ES384.
func WithAllowedAlgs(algs ...string) Option {
	return func(c *config) { c.allowedAlgs = append([]string(nil), algs...) }
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(c *config) { c.leeway = d }
}

// WithHTTPClient sets the client used to fetch and refresh the key set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithTokenValidated registers the post-validation hook.
func WithTokenValidated(fn TokenValidatedFunc) Option {
	return func(c *config) { c.hook = fn }
}

// WithServices sets how the hook's service locator is obtained. A nil fn
// keeps the default, which uses the request context.
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

// Handler is the JWT scheme.
type Handler struct {
	name      string
	marker    string
	validator *jwtauth.Validator
	hook      TokenValidatedFunc
	services  func(ctx context.Context) hooks.ServiceLocator
	log       *slog.Logger
}

var _ auth.Scheme = (*Handler)(nil)

// New builds the scheme against the authority and keyset endpoints of ep.
// The key set is cached and refreshed in the background until ctx is done.
func New(ctx context.Context, ep endpoints.Endpoints, opts ...Option) (*Handler, error) {
	def := jwtauth.DefaultConfig()
	cfg := &config{
		name:        SchemeName,
		marker:      claims.DefaultMarker,
		allowedAlgs: def.AllowedAlgs,
		leeway:      def.Leeway,
		hook:        hooks.NoOp[*ValidatedContext],
		services:    func(ctx context.Context) hooks.ServiceLocator { return ctx },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	authority, err := ep.AuthorityEndpoint()
	if err != nil {
		return nil, err
	}
	keyset, err := ep.KeysetEndpoint()
	if err != nil {
		return nil, err
	}

	v, err := jwtauth.New(ctx, &jwtauth.Config{
		Issuer:      authority.String(),
		KeysetURL:   keyset.String(),
		Audiences:   cfg.audiences,
		AllowedAlgs: cfg.allowedAlgs,
		Leeway:      cfg.leeway,
		HTTPClient:  cfg.httpClient,
		Logger:      cfg.log,
	})
	if err != nil {
		return nil, err
	}

	return &Handler{
		name:      cfg.name,
		marker:    cfg.marker,
		validator: v,
		hook:      cfg.hook,
		services:  cfg.services,
		log:       logctx.Wrap(cfg.log),
	}, nil
}

// Name returns the scheme name.
func (h *Handler) Name() string { return h.name }

// Authenticate authenticates r from its Authorization header.
func (h *Handler) Authenticate(r *http.Request) (auth.Result, error) {
	return h.AuthenticateHeader(r.Context(), r.Header.Get("Authorization"))
}

// AuthenticateHeader authenticates an Authorization header value. Opaque
// credentials fail with auth.CodeWrongScheme so a caller can try the opaque
// scheme next.
func (h *Handler) AuthenticateHeader(ctx context.Context, header string) (auth.Result, error) {
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: h.name})

	tok, shape := credential.Classify(header)
	switch shape {
	case credential.Missing:
		return auth.Fail(auth.CodeMissingToken, ReasonMissingToken), nil
	case credential.Opaque:
		return auth.Fail(auth.CodeWrongScheme, ReasonWrongScheme), nil
	}

	mc, err := h.validator.Validate(ctx, tok)
	if err != nil {
		h.log.InfoContext(ctx, "auth.jwt.validate.fail", slog.String("err", err.Error()))
		if errors.Is(err, jwtauth.ErrUnauthorized) {
			return auth.Fail(auth.CodeInvalidToken, ReasonInvalidToken), nil
		}
		return auth.Result{}, err
	}

	cl, err := tokenClaims(mc, h.marker)
	if err != nil {
		return auth.Result{}, err
	}
	id := auth.NewIdentity(h.name, cl)
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: h.name, Subject: id.Subject()})

	vc := &ValidatedContext{Scheme: h.name, Claims: mc, Identity: id, Services: h.services(ctx)}
	if err := hooks.Dispatch(ctx, h.name, h.hook, vc); err != nil {
		h.log.ErrorContext(ctx, "auth.jwt.hook.fail", slog.String("err", err.Error()))
		return auth.Result{}, err
	}

	h.log.DebugContext(ctx, "auth.jwt.ok", slog.Int("claims", len(id.Claims)))
	return auth.Success(&auth.Ticket{Scheme: h.name, Identity: id}), nil
}

// tokenClaims flattens verified token claims in key order behind the same
// synthesized claims the opaque scheme emits.
func tokenClaims(mc jwt.MapClaims, marker string) ([]auth.Claim, error) {
	sub, _ := mc["sub"].(string)
	out := []auth.Claim{
		{Type: auth.ClaimTypeName, Value: marker},
		{Type: auth.ClaimTypeAuthenticationMethod, Value: marker},
		{Type: auth.ClaimTypeSid, Value: sub},
	}
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if mc[k] == nil {
			continue
		}
		v, err := claims.Stringify(mc[k])
		if err != nil {
			return nil, err
		}
		out = append(out, auth.Claim{Type: k, Value: v})
	}
	return out, nil
}
