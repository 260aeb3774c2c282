package endpoints

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/ggoodman/oidc-bearer-go/internal/wellknown"
)

// Discover performs OpenID Connect discovery against the authority endpoint
// of e and returns a copy of e whose authorize, token, userinfo and keyset
// overrides come from the published metadata. The login endpoint is not part
// of the discovery document and keeps its configured value.
//
// The issuer in the document must equal the authority URL exactly. Use
// oidc.ClientContext to supply a custom *http.Client.
func Discover(ctx context.Context, e Endpoints) (Endpoints, error) {
	authority, err := e.AuthorityEndpoint()
	if err != nil {
		return Endpoints{}, err
	}

	provider, err := oidc.NewProvider(ctx, authority.String())
	if err != nil {
		return Endpoints{}, fmt.Errorf("endpoints: oidc discovery failed: %w", err)
	}
	var meta wellknown.OpenIDConfiguration
	if err := provider.Claims(&meta); err != nil {
		return Endpoints{}, fmt.Errorf("endpoints: invalid discovery metadata: %w", err)
	}

	missing := []string{}
	if meta.JwksURI == "" {
		missing = append(missing, "jwks_uri")
	}
	if meta.UserinfoEndpoint == "" {
		missing = append(missing, "userinfo_endpoint")
	}
	if len(missing) > 0 {
		return Endpoints{}, fmt.Errorf("endpoints: discovery incomplete: missing %s", strings.Join(missing, ", "))
	}

	out := e
	out.Authority = authority.String()
	out.Userinfo = meta.UserinfoEndpoint
	out.Keyset = meta.JwksURI
	if meta.AuthorizationEndpoint != "" {
		out.Authorize = meta.AuthorizationEndpoint
	}
	if meta.TokenEndpoint != "" {
		out.Token = meta.TokenEndpoint
	}
	return out, nil
}
