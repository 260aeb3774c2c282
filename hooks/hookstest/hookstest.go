// Package hookstest provides a recording hook for tests.
package hookstest

import (
	"context"
	"sync"

	"github.com/ggoodman/oidc-bearer-go/hooks"
)

// Recorder records every invocation of its hook.
type Recorder[C any] struct {
	mu    sync.Mutex
	calls []C

	// Err, when set, is returned from every invocation.
	Err error
	// Mutate, when set, runs on each invocation before it is recorded.
	Mutate func(ctx context.Context, vc C)
}

// NewRecorder returns an empty Recorder.
func NewRecorder[C any]() *Recorder[C] {
	return &Recorder[C]{}
}

// Hook returns the hook function to register with a scheme.
func (r *Recorder[C]) Hook() hooks.Func[C] {
	return func(ctx context.Context, vc C) error {
		if r.Mutate != nil {
			r.Mutate(ctx, vc)
		}
		r.mu.Lock()
		r.calls = append(r.calls, vc)
		r.mu.Unlock()
		return r.Err
	}
}

// Count returns the number of invocations so far.
func (r *Recorder[C]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Calls returns a copy of the recorded contexts.
func (r *Recorder[C]) Calls() []C {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]C(nil), r.calls...)
}
