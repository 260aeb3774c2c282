// Package claims turns a verified UserIdentity into the flat, ordered claim
// list carried by an authentication ticket.
package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/identity"
)

// DefaultMarker is the value of the synthesized name and
// authentication-method claims when no marker is configured.
const DefaultMarker = "oidc"

// Materialize builds the claim list for u.
//
// The list starts with three synthesized claims: name and authentication
// method (both set to marker) and the security identifier set to the
// subject. One claim per non-null field of u follows, in declaration order.
//
// A nil subject means the provider broke its contract; Materialize returns a
// *auth.ProtocolViolationError and no claims.
func Materialize(u *identity.UserIdentity, marker string) ([]auth.Claim, error) {
	if u == nil || u.Subject == nil {
		return nil, &auth.ProtocolViolationError{Detail: "userinfo document has no subject"}
	}
	if marker == "" {
		marker = DefaultMarker
	}

	fields := u.Fields()
	out := make([]auth.Claim, 0, 3+len(fields))
	out = append(out,
		auth.Claim{Type: auth.ClaimTypeName, Value: marker},
		auth.Claim{Type: auth.ClaimTypeAuthenticationMethod, Value: marker},
		auth.Claim{Type: auth.ClaimTypeSid, Value: *u.Subject},
	)
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		v, err := Stringify(f.Value)
		if err != nil {
			return nil, fmt.Errorf("claims: field %q: %w", f.Name, err)
		}
		out = append(out, auth.Claim{Type: f.Name, Value: v})
	}
	return out, nil
}

// Stringify is the fixed textual conversion for claim values: strings are
// kept verbatim, integers are base 10, booleans are true/false, raw JSON is
// compacted and anything else is JSON encoded.
func Stringify(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, x); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
