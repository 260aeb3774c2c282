package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	calls := 0
	fn := Func[*ValidatedContext](func(ctx context.Context, vc *ValidatedContext) error {
		calls++
		return nil
	})
	require.NoError(t, Dispatch(context.Background(), "s", fn, &ValidatedContext{}))
	assert.Equal(t, 1, calls)
}

func TestDispatch_NilAndNoOp(t *testing.T) {
	assert.NoError(t, Dispatch[*ValidatedContext](context.Background(), "s", nil, nil))
	assert.NoError(t, Dispatch[*ValidatedContext](context.Background(), "s", NoOp[*ValidatedContext], &ValidatedContext{}))
}

func TestDispatch_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	err := Dispatch[int](context.Background(), "oidc-opaque", func(context.Context, int) error { return boom }, 1)

	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "oidc-opaque", he.Scheme)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "hooks: oidc-opaque token validated hook failed: boom", err.Error())
}
