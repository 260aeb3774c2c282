package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/auth/authtest"
	"github.com/ggoodman/oidc-bearer-go/endpoints"
	"github.com/ggoodman/oidc-bearer-go/middleware"
	"github.com/ggoodman/oidc-bearer-go/opaque"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	t.Run("first success wins", func(t *testing.T) {
		wrong := authtest.NewFailure("jwt", auth.CodeWrongScheme, "wrong scheme")
		ok := authtest.NewSuccess("opaque", "u1")
		later := authtest.NewSuccess("other", "u2")

		res, err := middleware.Decide(req, []auth.Scheme{wrong, ok, later})
		require.NoError(t, err)
		require.True(t, res.Succeeded())
		assert.Equal(t, "u1", res.Ticket().Identity.Subject())
		assert.Zero(t, later.Calls())
	})

	t.Run("prefers informative failure", func(t *testing.T) {
		res, err := middleware.Decide(req, []auth.Scheme{
			authtest.NewFailure("opaque", auth.CodeWrongScheme, "wrong scheme"),
			authtest.NewFailure("jwt", auth.CodeInvalidToken, "invalid token"),
		})
		require.NoError(t, err)
		assert.Equal(t, auth.CodeInvalidToken, res.Failure().Code)
	})

	t.Run("falls back to first failure", func(t *testing.T) {
		res, err := middleware.Decide(req, []auth.Scheme{
			authtest.NewFailure("a", auth.CodeWrongScheme, "first"),
			authtest.NewFailure("b", auth.CodeWrongScheme, "second"),
		})
		require.NoError(t, err)
		assert.Equal(t, "first", res.Failure().Reason)
	})

	t.Run("fault stops the run", func(t *testing.T) {
		boom := errors.New("boom")
		after := authtest.NewSuccess("b", "")
		_, err := middleware.Decide(req, []auth.Scheme{authtest.NewFault("a", boom), after})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, after.Calls())
	})

	t.Run("no schemes", func(t *testing.T) {
		res, err := middleware.Decide(req, nil)
		assert.ErrorIs(t, err, middleware.ErrNoSchemes)
		assert.False(t, res.Succeeded())
		assert.Nil(t, res.Failure())
	})
}

func serve(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func mustOpaque(t *testing.T, idp *authtest.Provider) *opaque.Handler {
	t.Helper()
	h, err := opaque.New(idp.Endpoints())
	require.NoError(t, err)
	return h
}

func echoSubject(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tk, ok := middleware.FromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(tk.Identity.Subject()))
	})
}

func TestAuthenticate_Success(t *testing.T) {
	h := middleware.Authenticate([]auth.Scheme{authtest.NewSuccess("s", "u1")})(echoSubject(t))
	rr := serve(h, "Bearer tok")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", rr.Body.String())
}

func TestAuthenticate_FailureChallenge(t *testing.T) {
	h := middleware.Authenticate(
		[]auth.Scheme{authtest.NewFailure("s", auth.CodeUserNotFound, "user not found")},
		middleware.WithRealm("api"),
		middleware.WithResourceMetadataURL("https://rs.example.com/.well-known/oauth-protected-resource"),
	)(echoSubject(t))

	rr := serve(h, "Bearer tok")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t,
		`Bearer realm="api", resource_metadata="https://rs.example.com/.well-known/oauth-protected-resource", error="invalid_token", error_description="user not found"`,
		rr.Header().Get("WWW-Authenticate"))

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, body.Error.Code)
	assert.Equal(t, "user not found", body.Error.Message)
}

func TestAuthenticate_MissingTokenBareChallenge(t *testing.T) {
	h := middleware.Authenticate(
		[]auth.Scheme{authtest.NewFailure("s", auth.CodeMissingToken, "missing token")},
		middleware.WithRealm("api"),
	)(echoSubject(t))

	rr := serve(h, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `Bearer realm="api"`, rr.Header().Get("WWW-Authenticate"))
}

func TestAuthenticate_FaultIs500(t *testing.T) {
	h := middleware.Authenticate([]auth.Scheme{authtest.NewFault("s", &auth.ProtocolViolationError{Detail: "no sub"})})(echoSubject(t))
	rr := serve(h, "Bearer tok")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestAuthenticate_NoSchemesIs500(t *testing.T) {
	h := middleware.Authenticate(nil, middleware.WithOptional())(echoSubject(t))
	rr := serve(h, "Bearer tok")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestAuthenticate_Optional(t *testing.T) {
	schemes := []auth.Scheme{authtest.NewFailure("s", auth.CodeMissingToken, "missing token")}
	h := middleware.Authenticate(schemes, middleware.WithOptional())(echoSubject(t))

	rr := serve(h, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())

	bad := middleware.Authenticate(
		[]auth.Scheme{authtest.NewFailure("s", auth.CodeFetchFailed, "fetch failed")},
		middleware.WithOptional(),
	)(echoSubject(t))
	assert.Equal(t, http.StatusUnauthorized, serve(bad, "Bearer tok").Code)
}

func TestAuthenticate_WithRealIdP(t *testing.T) {
	idp := authtest.NewProvider(t)
	idp.SetUser("opaque-1", `{"sub":"u1"}`)

	h := middleware.Authenticate([]auth.Scheme{mustOpaque(t, idp)})(echoSubject(t))
	assert.Equal(t, "u1", serve(h, "Bearer opaque-1").Body.String())
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer unknown").Code)
}

func TestProtectedResourceMetadata(t *testing.T) {
	set, err := endpoints.New("https://id.example.com").Resolve()
	require.NoError(t, err)
	h := middleware.ProtectedResourceMetadata(set, "https://api.example.com", "Example API")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "https://api.example.com", doc["resource"])
	assert.Equal(t, []any{"https://id.example.com/oidc"}, doc["authorization_servers"])
	assert.Equal(t, "https://id.example.com/oidc/jwks", doc["jwks_uri"])
	assert.Equal(t, "Example API", doc["resource_name"])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/.well-known/oauth-protected-resource", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
