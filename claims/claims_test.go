package claims

import (
	"encoding/json"
	"testing"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) *identity.UserIdentity {
	t.Helper()
	u, err := identity.Decode([]byte(doc), identity.SnakeCase)
	require.NoError(t, err)
	return u
}

func TestMaterialize_SynthesizedClaimsFirst(t *testing.T) {
	u := decode(t, `{"sub":"u1","username":"ada","primary_phone":null,"is_suspended":true,"created_at":1600000000000}`)

	got, err := Materialize(u, "")
	require.NoError(t, err)

	assert.Equal(t, []auth.Claim{
		{Type: auth.ClaimTypeName, Value: DefaultMarker},
		{Type: auth.ClaimTypeAuthenticationMethod, Value: DefaultMarker},
		{Type: auth.ClaimTypeSid, Value: "u1"},
		{Type: "sub", Value: "u1"},
		{Type: "username", Value: "ada"},
		{Type: "createdAt", Value: "1600000000000"},
		{Type: "isSuspended", Value: "true"},
	}, got)
}

func TestMaterialize_NullFieldsAbsent(t *testing.T) {
	u := decode(t, `{"sub":"u1","primary_phone":null}`)
	got, err := Materialize(u, "oidc")
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, "primaryPhone", c.Type)
	}
	assert.Len(t, got, 4)
}

func TestMaterialize_CustomMarker(t *testing.T) {
	u := decode(t, `{"sub":"u1"}`)
	got, err := Materialize(u, "logto")
	require.NoError(t, err)
	assert.Equal(t, "logto", got[0].Value)
	assert.Equal(t, "logto", got[1].Value)
}

func TestMaterialize_SocialIdentities(t *testing.T) {
	u := decode(t, `{"sub":"u1","identities":{"github":{"user_id":"g1","details":{"email":"a@b","raw_data":{"k": [1, 2]}}}}}`)
	got, err := Materialize(u, "")
	require.NoError(t, err)

	id := auth.NewIdentity("x", got)
	assert.True(t, id.HasClaim("identities.github.userId", "g1"))
	assert.True(t, id.HasClaim("identities.github.details.email", "a@b"))
	assert.True(t, id.HasClaim("identities.github.details.rawData", `{"k":[1,2]}`))
	_, ok := id.FindFirst("identities.github.details.name")
	assert.False(t, ok)
}

func TestMaterialize_MissingSubjectIsProtocolViolation(t *testing.T) {
	u := decode(t, `{"sub":null,"name":"x"}`)
	got, err := Materialize(u, "")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, auth.ErrProtocolViolation)

	_, err = Materialize(nil, "")
	assert.ErrorIs(t, err, auth.ErrProtocolViolation)
}

func TestMaterialize_Idempotent(t *testing.T) {
	u := decode(t, `{"sub":"u1","name":"n","custom_data":{"a":1},"identities":{"patreon":{"user_id":"p"},"github":{"user_id":"g"}}}`)
	a, err := Materialize(u, "")
	require.NoError(t, err)
	b, err := Materialize(u, "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStringify(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{int64(-7), "-7"},
		{3, "3"},
		{1.5, "1.5"},
		{float64(1700000000), "1700000000"},
		{false, "false"},
		{json.RawMessage(`{ "a" : 1 }`), `{"a":1}`},
		{[]any{"a", "b"}, `["a","b"]`},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	} {
		got, err := Stringify(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Stringify(json.RawMessage(`{bad`))
	assert.Error(t, err)
}
