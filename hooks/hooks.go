// Package hooks defines the extension point a host uses to observe or augment
// a successful authentication before the ticket is issued.
package hooks

import (
	"context"
	"fmt"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/identity"
)

// ServiceLocator resolves request-scoped services for a hook. A
// context.Context satisfies it, which is the default locator.
type ServiceLocator interface {
	Value(key any) any
}

// ValidatedContext is handed to the opaque scheme's hook after the userinfo
// round trip and claim materialization succeeded. It lives only for the
// duration of the hook call.
type ValidatedContext struct {
	// Scheme is the name of the scheme that validated the token.
	Scheme string
	// User is the identity returned by the provider.
	User *identity.UserIdentity
	// Identity is the in-progress identity. Claims added here end up in the ticket.
	Identity *auth.Identity
	// Services resolves request-scoped services.
	Services ServiceLocator
}

// Func is a post-validation callback receiving a scheme-specific context.
type Func[C any] func(ctx context.Context, vc C) error

// TokenValidatedFunc is the hook type of the opaque scheme.
type TokenValidatedFunc = Func[*ValidatedContext]

// NoOp is the default hook.
func NoOp[C any](context.Context, C) error { return nil }

// HookError reports a failing hook. Schemes return it as a fault rather than
// an authentication failure.
type HookError struct {
	Scheme string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hooks: %s token validated hook failed: %v", e.Scheme, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Dispatch invokes fn exactly once and waits for it to return. A nil fn is
// treated as NoOp.
func Dispatch[C any](ctx context.Context, scheme string, fn Func[C], vc C) error {
	if fn == nil {
		return nil
	}
	if err := fn(ctx, vc); err != nil {
		return &HookError{Scheme: scheme, Err: err}
	}
	return nil
}
