package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/ggoodman/oidc-bearer-go/internal/wellknown"
)

// ProtectedResourceMetadata returns a handler serving the OAuth 2.0 Protected
// Resource Metadata document (RFC 9728) for resource, naming the provider's
// authority as authorization server and its key set.
func ProtectedResourceMetadata(set endpoints.Set, resource string, name string) http.Handler {
	doc := wellknown.ProtectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{set.Authority},
		JwksURI:                set.Keyset,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           name,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", jsonMediaType.String())
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode protected resource metadata: %v", err), http.StatusInternalServerError)
		}
	})
}
