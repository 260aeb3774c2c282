package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// FailureCode is a stable, machine-readable reason for a failed
// authentication. The accompanying reason text may change; codes do not.
type FailureCode string

const (
	CodeMissingToken FailureCode = "missing_token"
	CodeWrongScheme  FailureCode = "wrong_scheme"
	CodeFetchFailed  FailureCode = "fetch_failed"
	CodeUserNotFound FailureCode = "user_not_found"
	CodeInvalidToken FailureCode = "invalid_token"
)

// Failure describes an ordinary authentication failure.
type Failure struct {
	Code   FailureCode
	Reason string
}

func (f *Failure) Error() string { return f.Reason }

// Unwrap lets errors.Is(f, ErrUnauthorized) succeed for every failure.
func (f *Failure) Unwrap() error { return ErrUnauthorized }

// Result holds exactly one of a Ticket or a Failure. The zero value is not a
// valid result; use Success or Fail.
type Result struct {
	ticket  *Ticket
	failure *Failure
}

// Success returns a successful result. It panics if t is nil.
func Success(t *Ticket) Result {
	if t == nil {
		panic("auth: Success requires a ticket")
	}
	return Result{ticket: t}
}

// Fail returns a failed result with the given code and reason.
func Fail(code FailureCode, reason string) Result {
	return Result{failure: &Failure{Code: code, Reason: reason}}
}

// Succeeded reports whether the result carries a ticket.
func (r Result) Succeeded() bool { return r.ticket != nil }

// Ticket returns the ticket of a successful result, or nil.
func (r Result) Ticket() *Ticket { return r.ticket }

// Failure returns the failure of a failed result, or nil.
func (r Result) Failure() *Failure { return r.failure }

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

func (r Result) String() string {
	switch {
	case r.ticket != nil:
		return fmt.Sprintf("success(%s)", r.ticket.Scheme)
	case r.failure != nil:
		return fmt.Sprintf("failure(%s: %s)", r.failure.Code, r.failure.Reason)
	default:
		return "invalid"
	}
}

// ProtocolViolationError reports an identity provider response that broke the
// provider's contract. It matches ErrProtocolViolation.
type ProtocolViolationError struct {
	Detail string
}

func (e *ProtocolViolationError) Error() string {
	return "identity provider protocol violation: " + e.Detail
}

func (e *ProtocolViolationError) Is(target error) bool { return target == ErrProtocolViolation }

// AuthenticationChallenge describes an HTTP challenge (status + WWW-Authenticate header).
type AuthenticationChallenge struct {
	Status          int
	WWWAuthenticate string
}

// ChallengeFor builds the RFC 6750 challenge for a failure. A missing token
// gets a bare challenge without an error code (RFC 6750 §3.1); every other
// failure is reported as invalid_token.
func ChallengeFor(realm, resourceMetadata string, f *Failure) AuthenticationChallenge {
	if f == nil || f.Code == CodeMissingToken {
		return AuthenticationChallenge{
			Status:          http.StatusUnauthorized,
			WWWAuthenticate: BuildBearerChallenge(realm, resourceMetadata, nil),
		}
	}
	return AuthenticationChallenge{
		Status: http.StatusUnauthorized,
		WWWAuthenticate: BuildBearerChallenge(realm, resourceMetadata, [][2]string{
			{"error", "invalid_token"},
			{"error_description", f.Reason},
		}),
	}
}

// BuildBearerChallenge builds a Bearer challenge header value.
// Format:
//
//	Bearer realm="<realm>", resource_metadata="<url>", error="...", error_description="..."
//
// Realm and resource_metadata are omitted if empty. Params keep the order given.
func BuildBearerChallenge(realm string, resourceMetadata string, params [][2]string) string {
	pieces := make([]string, 0, 2+len(params))
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	for _, kv := range params {
		pieces = append(pieces, fmt.Sprintf(`%s="%s"`, kv[0], esc(kv[1])))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
