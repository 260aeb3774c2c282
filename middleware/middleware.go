// Package middleware runs bearer schemes in front of an http.Handler and maps
// their outcomes onto RFC 6750 responses.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/internal/logctx"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// ErrNoSchemes is the fault reported when a request reaches the middleware
// with no authentication scheme registered.
var ErrNoSchemes = errors.New("middleware: no authentication scheme registered")

// Option configures the middleware.
type Option func(*config)

type config struct {
	log              *slog.Logger
	realm            string
	resourceMetadata string
	optional         bool
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. If
// empty (default), the realm attribute is omitted.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = strings.TrimSpace(realm) }
}

// WithResourceMetadataURL advertises a protected resource metadata document
// in challenges (RFC 9728).
func WithResourceMetadataURL(u string) Option {
	return func(c *config) { c.resourceMetadata = u }
}

// WithOptional lets requests without any credential through without a
// ticket. Requests presenting a bad credential are still rejected.
func WithOptional() Option {
	return func(c *config) { c.optional = true }
}

type ticketKey struct{}

// WithTicket returns a copy of ctx carrying t.
func WithTicket(ctx context.Context, t *auth.Ticket) context.Context {
	return context.WithValue(ctx, ticketKey{}, t)
}

// FromContext returns the ticket stored by the middleware.
func FromContext(ctx context.Context) (*auth.Ticket, bool) {
	t, ok := ctx.Value(ticketKey{}).(*auth.Ticket)
	return t, ok && t != nil
}

// Decide runs schemes against r in order and returns the first success. If
// none succeeds it returns the first failure that is not a wrong-scheme
// refusal, falling back to the first failure. A fault from any scheme stops
// the run. An empty scheme list is a configuration fault (ErrNoSchemes).
func Decide(r *http.Request, schemes []auth.Scheme) (auth.Result, error) {
	if len(schemes) == 0 {
		return auth.Result{}, ErrNoSchemes
	}
	var first, chosen *auth.Result
	for _, s := range schemes {
		res, err := s.Authenticate(r)
		if err != nil {
			return auth.Result{}, err
		}
		if res.Succeeded() {
			return res, nil
		}
		if first == nil {
			first = &res
		}
		if chosen == nil && res.Failure().Code != auth.CodeWrongScheme {
			chosen = &res
		}
	}
	if chosen != nil {
		return *chosen, nil
	}
	return *first, nil
}

// Authenticate returns middleware that authenticates every request with
// schemes. On success the ticket is available through FromContext.
//
// Failures get a 401 with a Bearer challenge and a small JSON body; faults
// (protocol violations, hook errors) get a 500 and are logged at error level.
func Authenticate(schemes []auth.Scheme, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logctx.Wrap(cfg.log)
	schemes = append([]auth.Scheme(nil), schemes...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logctx.EnsureRequestData(r.Context(), r)
			r = r.WithContext(ctx)

			res, err := Decide(r, schemes)
			if err != nil {
				log.ErrorContext(ctx, "auth.check.err", slog.String("err", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, "authentication error")
				return
			}

			if !res.Succeeded() {
				f := res.Failure()
				if cfg.optional && f.Code == auth.CodeMissingToken && r.Header.Get(authorizationHeader) == "" {
					log.DebugContext(ctx, "auth.check.anonymous")
					next.ServeHTTP(w, r)
					return
				}
				log.InfoContext(ctx, "auth.check.fail", slog.String("code", string(f.Code)), slog.String("err", f.Reason))
				ch := auth.ChallengeFor(cfg.realm, cfg.resourceMetadata, f)
				w.Header().Add(wwwAuthenticateHeader, ch.WWWAuthenticate)
				writeJSONError(w, ch.Status, f.Reason)
				return
			}

			t := res.Ticket()
			ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: t.Scheme, Subject: t.Identity.Subject()})
			log.InfoContext(ctx, "auth.check.ok")
			next.ServeHTTP(w, r.WithContext(WithTicket(ctx, t)))
		})
	}
}

// writeJSONError emits a minimal JSON body for HTTP-layer rejections.
// Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}
