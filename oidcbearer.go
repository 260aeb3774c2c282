// Package oidcbearer wires bearer-token authentication against an
// OpenID-Connect-style identity provider into an HTTP service.
//
// A Builder is created once at startup from the provider's base address. It
// registers one or both schemes, each with its own post-validation hook:
//
//	b, err := oidcbearer.New(endpoints.New("https://id.example.com"))
//	if err != nil {
//	    log.Fatal(err) // endpoints.ErrMissingBaseAddress and friends
//	}
//	b.RegisterJWT(ctx)
//	b.RegisterOpaque(opaque.WithTokenValidated(func(ctx context.Context, vc *hooks.ValidatedContext) error {
//	    vc.Identity.AddClaim("tenant", lookupTenant(ctx, *vc.User.Subject))
//	    return nil
//	}))
//	http.Handle("/api/", b.Middleware()(api))
//
// The opaque scheme refuses JWT-shaped credentials and the JWT scheme refuses
// opaque ones, so the middleware can try both in registration order.
//
// The Builder must not be modified once it is serving requests.
package oidcbearer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/ggoodman/oidc-bearer-go/internal/logctx"
	"github.com/ggoodman/oidc-bearer-go/jwtbearer"
	"github.com/ggoodman/oidc-bearer-go/middleware"
	"github.com/ggoodman/oidc-bearer-go/opaque"
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger handed to every registered scheme and the
// middleware.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithHTTPClient sets the client used for calls to the identity provider:
// the userinfo round trip of the opaque scheme and the key set fetches of the
// JWT scheme.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Builder) { b.httpClient = c }
}

// Builder holds the validated provider configuration and the registered
// schemes.
type Builder struct {
	endpoints  endpoints.Endpoints
	set        endpoints.Set
	log        *slog.Logger
	httpClient *http.Client
	schemes    []auth.Scheme
}

// New validates ep and returns a Builder. A missing base address fails with
// endpoints.ErrMissingBaseAddress.
func New(ep endpoints.Endpoints, opts ...Option) (*Builder, error) {
	set, err := ep.Resolve()
	if err != nil {
		return nil, err
	}
	b := &Builder{endpoints: ep, set: set, log: slog.Default(), httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logctx.Wrap(b.log)
	return b, nil
}

// Endpoints returns the resolved endpoint set.
func (b *Builder) Endpoints() endpoints.Set { return b.set }

// RegisterJWT registers the JWT scheme and returns its name. Options given
// here override the builder's defaults.
func (b *Builder) RegisterJWT(ctx context.Context, opts ...jwtbearer.Option) (string, error) {
	all := append([]jwtbearer.Option{jwtbearer.WithLogger(b.log), jwtbearer.WithHTTPClient(b.httpClient)}, opts...)
	h, err := jwtbearer.New(ctx, b.endpoints, all...)
	if err != nil {
		return "", err
	}
	if err := b.add(h); err != nil {
		return "", err
	}
	b.log.Info("auth.scheme.registered", slog.String("scheme", h.Name()), slog.String("issuer", b.set.Authority))
	return h.Name(), nil
}

// RegisterOpaque registers the opaque-token scheme and returns its name.
func (b *Builder) RegisterOpaque(opts ...opaque.Option) (string, error) {
	all := append([]opaque.Option{opaque.WithLogger(b.log), opaque.WithHTTPClient(b.httpClient)}, opts...)
	h, err := opaque.New(b.endpoints, all...)
	if err != nil {
		return "", err
	}
	if err := b.add(h); err != nil {
		return "", err
	}
	b.log.Info("auth.scheme.registered", slog.String("scheme", h.Name()), slog.String("userinfo", b.set.Userinfo))
	return h.Name(), nil
}

func (b *Builder) add(s auth.Scheme) error {
	for _, existing := range b.schemes {
		if existing.Name() == s.Name() {
			return fmt.Errorf("oidcbearer: scheme %q already registered", s.Name())
		}
	}
	b.schemes = append(b.schemes, s)
	return nil
}

// Scheme returns the registered scheme called name.
func (b *Builder) Scheme(name string) (auth.Scheme, bool) {
	for _, s := range b.schemes {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Schemes returns the registered schemes in registration order.
func (b *Builder) Schemes() []auth.Scheme {
	return append([]auth.Scheme(nil), b.schemes...)
}

// Middleware returns HTTP middleware running the registered schemes in
// registration order.
func (b *Builder) Middleware(opts ...middleware.Option) func(http.Handler) http.Handler {
	all := append([]middleware.Option{middleware.WithLogger(b.log)}, opts...)
	return middleware.Authenticate(b.Schemes(), all...)
}
