// Package endpoints resolves the identity provider endpoints used by the
// bearer schemes from a base address and optional per-endpoint overrides.
package endpoints

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// ErrMissingBaseAddress is the configuration error returned when an endpoint
// is read before a base address was set.
var ErrMissingBaseAddress = errors.New("endpoints: base address is required")

// Default endpoint paths, relative to the base address.
const (
	DefaultAuthorityPath = "/oidc"
	DefaultAuthorizePath = "/oidc/authorize"
	DefaultLoginPath     = "/oidc/login"
	DefaultTokenPath     = "/oidc/token"
	DefaultUserinfoPath  = "/oidc/me"
	DefaultKeysetPath    = "/oidc/jwks"
)

// Endpoints is the configuration surface for the identity provider.
//
// BaseAddress is required and must be absolute. Each override may be empty
// (use the default path), a relative reference resolved against BaseAddress,
// or an absolute URL.
type Endpoints struct {
	BaseAddress string

	Authority string
	Authorize string
	Login     string
	Token     string
	Userinfo  string
	Keyset    string
}

// New returns Endpoints for base with all defaults.
func New(base string) Endpoints {
	return Endpoints{BaseAddress: base}
}

// Validate checks that BaseAddress is set and absolute and that every
// override resolves.
func (e Endpoints) Validate() error {
	_, err := e.Resolve()
	return err
}

// AuthorityEndpoint returns the issuer/authority URL.
func (e Endpoints) AuthorityEndpoint() (*url.URL, error) {
	return e.resolve(e.Authority, DefaultAuthorityPath)
}

// AuthorizeEndpoint returns the authorization endpoint URL.
func (e Endpoints) AuthorizeEndpoint() (*url.URL, error) {
	return e.resolve(e.Authorize, DefaultAuthorizePath)
}

// LoginEndpoint returns the login endpoint URL.
func (e Endpoints) LoginEndpoint() (*url.URL, error) {
	return e.resolve(e.Login, DefaultLoginPath)
}

// TokenEndpoint returns the token endpoint URL.
func (e Endpoints) TokenEndpoint() (*url.URL, error) {
	return e.resolve(e.Token, DefaultTokenPath)
}

// UserinfoEndpoint returns the userinfo endpoint URL.
func (e Endpoints) UserinfoEndpoint() (*url.URL, error) {
	return e.resolve(e.Userinfo, DefaultUserinfoPath)
}

// KeysetEndpoint returns the JWKS endpoint URL.
func (e Endpoints) KeysetEndpoint() (*url.URL, error) {
	return e.resolve(e.Keyset, DefaultKeysetPath)
}

func (e Endpoints) base() (*url.URL, error) {
	if e.BaseAddress == "" {
		return nil, ErrMissingBaseAddress
	}
	u, err := url.Parse(e.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("endpoints: invalid base address %q: %w", e.BaseAddress, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("endpoints: base address %q must be absolute", e.BaseAddress)
	}
	return u, nil
}

func (e Endpoints) resolve(override, def string) (*url.URL, error) {
	base, err := e.base()
	if err != nil {
		return nil, err
	}
	ref := override
	if ref == "" {
		ref = def
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("endpoints: invalid endpoint %q: %w", ref, err)
	}
	return base.ResolveReference(r), nil
}

// Resolve computes every endpoint once and returns them as a Set.
func (e Endpoints) Resolve() (Set, error) {
	var s Set
	for _, f := range []struct {
		dst *string
		get func() (*url.URL, error)
	}{
		{&s.Authority, e.AuthorityEndpoint},
		{&s.Authorize, e.AuthorizeEndpoint},
		{&s.Login, e.LoginEndpoint},
		{&s.Token, e.TokenEndpoint},
		{&s.Userinfo, e.UserinfoEndpoint},
		{&s.Keyset, e.KeysetEndpoint},
	} {
		u, err := f.get()
		if err != nil {
			return Set{}, err
		}
		*f.dst = u.String()
	}
	return s, nil
}

// Set is a fully resolved, immutable set of absolute endpoint URLs. It is
// passed by value and safe to share between goroutines.
type Set struct {
	Authority string
	Authorize string
	Login     string
	Token     string
	Userinfo  string
	Keyset    string
}

// OAuth2Endpoint returns the authorize/token pair for hosts that run their own
// OAuth 2.0 client against the provider.
func (s Set) OAuth2Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: s.Authorize, TokenURL: s.Token}
}
