// Package credential extracts bearer credentials from Authorization headers
// and tells signed JWTs apart from opaque tokens.
package credential

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Shape is the structural kind of a credential.
type Shape int

const (
	Missing Shape = iota
	Opaque
	JWT
)

func (s Shape) String() string {
	switch s {
	case Opaque:
		return "opaque"
	case JWT:
		return "jwt"
	default:
		return "missing"
	}
}

// Extract returns the trailing credential of an Authorization header value
// ("Bearer abc" yields "abc"). A header holding only a scheme word yields "".
func Extract(header string) string {
	fields := strings.Fields(header)
	switch len(fields) {
	case 0:
		return ""
	case 1:
		if strings.EqualFold(fields[0], "bearer") {
			return ""
		}
		return fields[0]
	default:
		return fields[len(fields)-1]
	}
}

var parser = jwt.NewParser()

// IsJWT reports whether tok is structurally a JWT: three dot-separated
// base64url segments whose header and payload decode as JSON objects. The
// signature is not verified and an unknown alg still counts as JWT-shaped.
func IsJWT(tok string) bool {
	if strings.Count(tok, ".") != 2 {
		return false
	}
	_, parts, err := parser.ParseUnverified(tok, jwt.MapClaims{})
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return false
	}
	if len(parts) != 3 {
		return false
	}
	if _, err := parser.DecodeSegment(parts[2]); err != nil {
		return false
	}
	return true
}

// Classify extracts the credential from header and reports its shape.
func Classify(header string) (string, Shape) {
	tok := Extract(header)
	switch {
	case tok == "":
		return "", Missing
	case IsJWT(tok):
		return tok, JWT
	default:
		return tok, Opaque
	}
}
