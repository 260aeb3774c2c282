// Package ginauth adapts the bearer schemes to Gin.
package ginauth

import (
	"log/slog"
	"net/http"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/internal/logctx"
	"github.com/ggoodman/oidc-bearer-go/middleware"
	"github.com/gin-gonic/gin"
)

// TicketKey is the gin context key holding the *auth.Ticket.
const TicketKey = "oidcbearer.ticket"

// Option configures the Gin middleware.
type Option func(*config)

type config struct {
	log   *slog.Logger
	realm string
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = realm }
}

// RequireAuth returns a gin handler that authenticates the request with
// schemes and aborts with 401 (failure) or 500 (fault). On success the ticket
// is stored under TicketKey and in the request context.
func RequireAuth(schemes []auth.Scheme, opts ...Option) gin.HandlerFunc {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logctx.Wrap(cfg.log)
	schemes = append([]auth.Scheme(nil), schemes...)

	return func(c *gin.Context) {
		ctx := logctx.EnsureRequestData(c.Request.Context(), c.Request)
		c.Request = c.Request.WithContext(ctx)
		res, err := middleware.Decide(c.Request, schemes)
		if err != nil {
			log.ErrorContext(ctx, "auth.check.err", slog.String("err", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": http.StatusInternalServerError, "message": "authentication error"}})
			return
		}
		if !res.Succeeded() {
			f := res.Failure()
			log.InfoContext(ctx, "auth.check.fail", slog.String("code", string(f.Code)), slog.String("err", f.Reason))
			ch := auth.ChallengeFor(cfg.realm, "", f)
			c.Header("WWW-Authenticate", ch.WWWAuthenticate)
			c.AbortWithStatusJSON(ch.Status, gin.H{"error": gin.H{"code": ch.Status, "message": f.Reason}})
			return
		}

		t := res.Ticket()
		ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: t.Scheme, Subject: t.Identity.Subject()})
		log.InfoContext(ctx, "auth.check.ok")
		c.Set(TicketKey, t)
		c.Request = c.Request.WithContext(middleware.WithTicket(ctx, t))
		c.Next()
	}
}

// Ticket returns the ticket stored by RequireAuth.
func Ticket(c *gin.Context) (*auth.Ticket, bool) {
	v, ok := c.Get(TicketKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*auth.Ticket)
	return t, ok
}
