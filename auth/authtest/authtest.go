// Package authtest provides an in-process identity provider for tests. It
// serves the discovery document, the key set and the userinfo endpoint under
// the default /oidc layout and signs JWTs with its own RSA key.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Response is a canned userinfo answer.
type Response struct {
	Status      int
	ContentType string
	Body        string
}

// Provider is a mock identity provider.
type Provider struct {
	// URL is the base address of the provider.
	URL string

	srv *httptest.Server
	key *rsa.PrivateKey
	kid string

	mu            sync.Mutex
	responses     map[string]Response
	userinfoCalls int
	jwksCalls     int
	lastAuth      string
}

// NewProvider starts a provider and registers its shutdown with t.
func NewProvider(t testing.TB) *Provider {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	p := &Provider{key: pk, kid: "test-key", responses: map[string]Response{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /oidc/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("GET /oidc/jwks", p.handleJWKS)
	mux.HandleFunc("GET /oidc/me", p.handleUserinfo)
	p.srv = httptest.NewServer(mux)
	p.URL = p.srv.URL
	t.Cleanup(p.srv.Close)
	return p
}

// Issuer returns the authority URL used as the iss of signed tokens.
func (p *Provider) Issuer() string { return p.URL + endpoints.DefaultAuthorityPath }

// Endpoints returns endpoints with default paths under the provider.
func (p *Provider) Endpoints() endpoints.Endpoints { return endpoints.New(p.URL) }

// SetUser makes token resolve to the given JSON userinfo body.
func (p *Provider) SetUser(token, body string) {
	p.SetResponse(token, Response{Status: http.StatusOK, ContentType: "application/json", Body: body})
}

// SetResponse makes token resolve to r.
func (p *Provider) SetResponse(token string, r Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[token] = r
}

// UserinfoCalls returns the number of userinfo requests served.
func (p *Provider) UserinfoCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userinfoCalls
}

// JWKSCalls returns the number of key set requests served.
func (p *Provider) JWKSCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jwksCalls
}

// LastAuthorization returns the Authorization header of the most recent
// userinfo request.
func (p *Provider) LastAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuth
}

// SignToken signs claims with the provider key (RS256).
func (p *Provider) SignToken(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = p.kid
	s, err := tok.SignedString(p.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.URL + endpoints.DefaultAuthorizePath,
		"token_endpoint":                        p.URL + endpoints.DefaultTokenPath,
		"userinfo_endpoint":                     p.URL + endpoints.DefaultUserinfoPath,
		"jwks_uri":                              p.URL + endpoints.DefaultKeysetPath,
		"response_types_supported":              []string{"code"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.jwksCalls++
	p.mu.Unlock()

	jwk := jose.JSONWebKey{Key: &p.key.PublicKey, KeyID: p.kid, Algorithm: "RS256", Use: "sig"}
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (p *Provider) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	p.mu.Lock()
	p.userinfoCalls++
	p.lastAuth = authz
	res, ok := p.responses[strings.TrimPrefix(authz, "Bearer ")]
	p.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(res.Body))
}

// StaticScheme is an auth.Scheme with a fixed outcome.
type StaticScheme struct {
	SchemeName string
	Result     auth.Result
	Err        error

	mu    sync.Mutex
	calls int
}

var _ auth.Scheme = (*StaticScheme)(nil)

// NewSuccess returns a scheme that always authenticates subject. If subject
// is empty it defaults to "test-user".
func NewSuccess(name, subject string) *StaticScheme {
	if subject == "" {
		subject = "test-user"
	}
	id := auth.NewIdentity(name, []auth.Claim{{Type: auth.ClaimTypeSid, Value: subject}})
	return &StaticScheme{SchemeName: name, Result: auth.Success(&auth.Ticket{Scheme: name, Identity: id})}
}

// NewFailure returns a scheme that always fails with code and reason.
func NewFailure(name string, code auth.FailureCode, reason string) *StaticScheme {
	return &StaticScheme{SchemeName: name, Result: auth.Fail(code, reason)}
}

// NewFault returns a scheme that always returns err.
func NewFault(name string, err error) *StaticScheme {
	return &StaticScheme{SchemeName: name, Err: err}
}

func (s *StaticScheme) Name() string { return s.SchemeName }

func (s *StaticScheme) Authenticate(r *http.Request) (auth.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return auth.Result{}, s.Err
	}
	return s.Result, nil
}

// Calls returns the number of Authenticate calls.
func (s *StaticScheme) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
