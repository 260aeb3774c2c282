package auth

import (
	"errors"
	"net/http"
)

// ErrUnauthorized indicates authentication failed or no valid credentials were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrProtocolViolation indicates the identity provider answered in a way that
// breaks its contract (for example a userinfo document without a subject).
// It is never reported as an ordinary authentication failure.
var ErrProtocolViolation = errors.New("identity provider protocol violation")

// Well-known claim types for the synthesized claims every ticket carries.
const (
	ClaimTypeName                 = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimTypeAuthenticationMethod = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationmethod"
	ClaimTypeSid                  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/sid"
)

// Claim is a single (type, value) fact attached to an authenticated identity.
type Claim struct {
	Type  string
	Value string
}

// Identity is the in-progress identity assembled by a scheme. Hooks receive a
// pointer to it and may append claims before the ticket is finalized.
type Identity struct {
	// AuthenticationType is the name of the scheme that built the identity.
	AuthenticationType string
	Claims             []Claim
}

// NewIdentity returns an identity for scheme holding a copy of claims.
func NewIdentity(scheme string, claims []Claim) *Identity {
	return &Identity{AuthenticationType: scheme, Claims: append([]Claim(nil), claims...)}
}

// AddClaim appends a claim.
func (i *Identity) AddClaim(typ, value string) {
	i.Claims = append(i.Claims, Claim{Type: typ, Value: value})
}

// FindFirst returns the first claim of the given type.
func (i *Identity) FindFirst(typ string) (Claim, bool) {
	for _, c := range i.Claims {
		if c.Type == typ {
			return c, true
		}
	}
	return Claim{}, false
}

// HasClaim reports whether a claim with the given type and value exists.
func (i *Identity) HasClaim(typ, value string) bool {
	for _, c := range i.Claims {
		if c.Type == typ && c.Value == value {
			return true
		}
	}
	return false
}

// Subject returns the security identifier claim, or "" if absent.
func (i *Identity) Subject() string {
	c, _ := i.FindFirst(ClaimTypeSid)
	return c.Value
}

// Ticket is the outcome of a successful authentication.
type Ticket struct {
	Scheme   string
	Identity *Identity
}

// Scheme authenticates a single request.
//
// Authenticate returns a Result for every ordinary outcome, successful or
// not. A non-nil error is reserved for faults that must not be mistaken for
// an authentication failure, such as ErrProtocolViolation or a failing hook.
//
// Implementations must be safe for concurrent use.
type Scheme interface {
	Name() string
	Authenticate(r *http.Request) (Result, error)
}
