package credential

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// hs256 is a well-formed HS256 token; IsJWT never verifies the signature.
var hs256 = func() string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
	if err != nil {
		panic(err)
	}
	return s
}()

func TestExtract(t *testing.T) {
	for in, want := range map[string]string{
		"":                "",
		"   ":             "",
		"Bearer":          "",
		"bearer":          "",
		"Bearer abc":      "abc",
		"bearer   abc  ":  "abc",
		"abc":             "abc",
		"Token extra abc": "abc",
	} {
		assert.Equal(t, want, Extract(in), "header %q", in)
	}
}

func TestIsJWT(t *testing.T) {
	assert.True(t, IsJWT(hs256))
	// unknown alg is still JWT-shaped
	assert.True(t, IsJWT("eyJhbGciOiJYWVoxMjMiLCJ0eXAiOiJKV1QifQ.eyJzdWIiOiJ1MSJ9.c2ln"))

	for _, tok := range []string{
		"",
		"opaque-token-123",
		"a.b",
		"a.b.c",
		"a.b.c.d",
		"eyJhbGciOiJIUzI1NiJ9.not-json.c2ln",
		"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.!!!",
		hs256 + ".extra",
	} {
		assert.False(t, IsJWT(tok), "token %q", tok)
	}
}

func TestClassify(t *testing.T) {
	tok, shape := Classify("")
	assert.Equal(t, Missing, shape)
	assert.Empty(t, tok)

	tok, shape = Classify("Bearer opaque-123")
	assert.Equal(t, Opaque, shape)
	assert.Equal(t, "opaque-123", tok)

	tok, shape = Classify("Bearer " + hs256)
	assert.Equal(t, JWT, shape)
	assert.Equal(t, hs256, tok)

	assert.Equal(t, "jwt", JWT.String())
	assert.Equal(t, "opaque", Opaque.String())
	assert.Equal(t, "missing", Missing.String())
}
