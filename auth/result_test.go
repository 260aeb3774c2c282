package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_SuccessAndFailureAreExclusive(t *testing.T) {
	tk := &Ticket{Scheme: "s", Identity: NewIdentity("s", nil)}
	ok := Success(tk)
	require.True(t, ok.Succeeded())
	assert.Same(t, tk, ok.Ticket())
	assert.Nil(t, ok.Failure())
	assert.NoError(t, ok.Err())
	assert.Equal(t, "success(s)", ok.String())

	bad := Fail(CodeUserNotFound, "user not found")
	require.False(t, bad.Succeeded())
	assert.Nil(t, bad.Ticket())
	require.NotNil(t, bad.Failure())
	assert.Equal(t, CodeUserNotFound, bad.Failure().Code)
	assert.Equal(t, "user not found", bad.Failure().Reason)
	assert.ErrorIs(t, bad.Err(), ErrUnauthorized)
	assert.Equal(t, "failure(user_not_found: user not found)", bad.String())
}

func TestResult_SuccessRequiresTicket(t *testing.T) {
	assert.Panics(t, func() { Success(nil) })
}

func TestProtocolViolationError(t *testing.T) {
	var err error = &ProtocolViolationError{Detail: "no subject"}
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "no subject")

	var pv *ProtocolViolationError
	require.True(t, errors.As(err, &pv))
	assert.Equal(t, "no subject", pv.Detail)
}

func TestIdentity_Claims(t *testing.T) {
	src := []Claim{{Type: ClaimTypeSid, Value: "u1"}}
	id := NewIdentity("oidc-opaque", src)
	src[0].Value = "changed"

	assert.Equal(t, "u1", id.Subject())
	id.AddClaim("role", "admin")
	assert.True(t, id.HasClaim("role", "admin"))
	assert.False(t, id.HasClaim("role", "user"))

	c, ok := id.FindFirst("role")
	require.True(t, ok)
	assert.Equal(t, "admin", c.Value)

	_, ok = id.FindFirst("missing")
	assert.False(t, ok)
	assert.Equal(t, "", NewIdentity("x", nil).Subject())
}

func TestChallengeFor(t *testing.T) {
	ch := ChallengeFor("api", "", &Failure{Code: CodeMissingToken, Reason: "missing token"})
	assert.Equal(t, http.StatusUnauthorized, ch.Status)
	assert.Equal(t, `Bearer realm="api"`, ch.WWWAuthenticate)

	ch = ChallengeFor("", "", nil)
	assert.Equal(t, "Bearer", ch.WWWAuthenticate)

	ch = ChallengeFor("api", "https://rs.example.com/.well-known/oauth-protected-resource", &Failure{Code: CodeUserNotFound, Reason: `user "x" not found`})
	assert.Equal(t, http.StatusUnauthorized, ch.Status)
	assert.Equal(t,
		`Bearer realm="api", resource_metadata="https://rs.example.com/.well-known/oauth-protected-resource", error="invalid_token", error_description="user \"x\" not found"`,
		ch.WWWAuthenticate)
}

func TestBuildBearerChallenge_KeepsParamOrder(t *testing.T) {
	got := BuildBearerChallenge("", "", [][2]string{{"error", "invalid_token"}, {"scope", "a b"}})
	assert.Equal(t, `Bearer error="invalid_token", scope="a b"`, got)
}
