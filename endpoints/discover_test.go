package endpoints_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggoodman/oidc-bearer-go/auth/authtest"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	idp := authtest.NewProvider(t)

	e := idp.Endpoints()
	e.Login = "/signin"
	got, err := endpoints.Discover(context.Background(), e)
	require.NoError(t, err)

	set, err := got.Resolve()
	require.NoError(t, err)
	assert.Equal(t, idp.Issuer(), set.Authority)
	assert.Equal(t, idp.URL+endpoints.DefaultUserinfoPath, set.Userinfo)
	assert.Equal(t, idp.URL+endpoints.DefaultKeysetPath, set.Keyset)
	assert.Equal(t, idp.URL+"/signin", set.Login)
}

func TestDiscover_MissingUserinfo(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oidc/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL + "/oidc",
			"authorization_endpoint": srv.URL + "/oidc/authorize",
			"token_endpoint":         srv.URL + "/oidc/token",
			"jwks_uri":               srv.URL + "/oidc/jwks",
		})
	}))
	defer srv.Close()

	_, err := endpoints.Discover(context.Background(), endpoints.New(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userinfo_endpoint")
}

func TestDiscover_MissingBaseAddress(t *testing.T) {
	_, err := endpoints.Discover(context.Background(), endpoints.Endpoints{})
	assert.ErrorIs(t, err, endpoints.ErrMissingBaseAddress)
}
