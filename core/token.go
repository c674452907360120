package core

import (
	"context"
)

// CancellationToken is the stop signal of one run. Cancel is monotonic and
// safe to call from any goroutine; units observe it at every wait point.
type CancellationToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancellationToken returns a token that is also cancelled when parent ends.
func NewCancellationToken(parent context.Context) *CancellationToken {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &CancellationToken{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. Repeated calls are no-ops.
func (t *CancellationToken) Cancel() {
	t.cancel()
}

// IsCancelled reports whether Cancel was called or the parent ended.
func (t *CancellationToken) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// Done is closed once the token is cancelled.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Context returns a context that ends with the token.
func (t *CancellationToken) Context() context.Context {
	return t.ctx
}

// OnCancel runs fn in its own goroutine once the token is cancelled.
// The returned stop func detaches fn; it reports false if fn already started.
func (t *CancellationToken) OnCancel(fn func()) (stop func() bool) {
	return context.AfterFunc(t.ctx, fn)
}
