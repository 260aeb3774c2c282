package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/MicahParks/jwkset"
	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const (
	keysetRefreshInterval = time.Hour
	keysetUnknownKIDEvery = 5 * time.Minute
	keysetRateLimitWait   = time.Minute
)

// ErrUnauthorized indicates that the token failed validation (signature,
// issuer, audience, exp/nbf) and the request should be treated as
// unauthenticated.
var ErrUnauthorized = errors.New("jwtauth: unauthorized")

// Config controls validation of signed access tokens.
type Config struct {
	// Issuer is compared with the iss claim.
	Issuer string
	// KeysetURL is the JWKS document location.
	KeysetURL string
	// Audiences, when non-empty, must intersect the aud claim. When empty the
	// audience is not validated.
	Audiences   []string
	AllowedAlgs []string
	Leeway      time.Duration
	// HTTPClient fetches and refreshes the key set. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives key set refresh errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with safe algorithm + leeway defaults.
func DefaultConfig() *Config {
	return &Config{AllowedAlgs: []string{"RS256", "ES384"}, Leeway: 60 * time.Second}
}

// Validator verifies signed access tokens against a cached, periodically
// refreshed JWKS. It is safe for concurrent use.
type Validator struct {
	cfg     Config
	keyfunc jwt.Keyfunc
}

// New constructs a Validator. The JWKS is fetched once here through
// cfg.HTTPClient and refreshed in the background; ctx bounds the lifetime of
// the refresh goroutine. A failed first fetch is retried on the first token
// with an unknown key id.
func New(ctx context.Context, cfg *Config) (*Validator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.KeysetURL == "" {
		return nil, errors.New("jwks uri required")
	}
	c := *cfg
	c.Audiences = append([]string(nil), cfg.Audiences...)
	c.AllowedAlgs = append([]string(nil), cfg.AllowedAlgs...)
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}

	store, err := newKeyset(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	kf, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: store})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &Validator{cfg: c, keyfunc: func(t *jwt.Token) (any, error) {
		if alg := t.Method.Alg(); !slices.Contains(c.AllowedAlgs, alg) {
			return nil, fmt.Errorf("disallowed alg: %s", alg)
		}
		return kf.Keyfunc(t)
	}}, nil
}

// newKeyset builds the cached JWKS storage: one fetch up front, an hourly
// background refresh and rate-limited refreshes for unknown key ids.
func newKeyset(ctx context.Context, c Config) (jwkset.Storage, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	remote, err := jwkset.NewStorageFromHTTP(c.KeysetURL, jwkset.HTTPClientStorageOptions{
		Client:                    hc,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           keysetRefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			log.ErrorContext(ctx, "jwks.refresh.fail", slog.String("url", c.KeysetURL), slog.String("err", err.Error()))
		},
	})
	if err != nil {
		return nil, err
	}
	return jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{c.KeysetURL: remote},
		RateLimitWaitMax:  keysetRateLimitWait,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(keysetUnknownKIDEvery), 1),
	})
}

// Validate verifies tok and returns its claims. Every validation failure
// wraps ErrUnauthorized.
func (v *Validator) Validate(ctx context.Context, tok string) (jwt.MapClaims, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithLeeway(v.cfg.Leeway),
	)
	parsed, err := parser.Parse(tok, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if len(v.cfg.Audiences) > 0 && !audIntersects(claims["aud"], v.cfg.Audiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return claims, nil
}

func audIntersects(aud any, wants []string) bool {
	wantSet := map[string]struct{}{}
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}
