package hookstest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ggoodman/oidc-bearer-go/auth"
	"github.com/ggoodman/oidc-bearer-go/hooks"
	"github.com/ggoodman/oidc-bearer-go/hooks/hookstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	rec := hookstest.NewRecorder[*hooks.ValidatedContext]()
	rec.Mutate = func(_ context.Context, vc *hooks.ValidatedContext) {
		vc.Identity.AddClaim("seen", "yes")
	}
	fn := rec.Hook()

	vc := &hooks.ValidatedContext{Scheme: "s", Identity: auth.NewIdentity("s", nil)}
	require.NoError(t, fn(context.Background(), vc))
	require.Equal(t, 1, rec.Count())
	assert.True(t, vc.Identity.HasClaim("seen", "yes"))
	assert.Same(t, vc, rec.Calls()[0])

	rec.Err = errors.New("nope")
	assert.ErrorIs(t, fn(context.Background(), vc), rec.Err)
	assert.Equal(t, 2, rec.Count())
}
