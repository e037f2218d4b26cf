package client

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a request replaced by a newer
// one under the same key.
var ErrSuperseded = errors.New("request superseded")

// Group tracks one in-flight request per logical key. Starting a request
// under a key cancels the previous request for that key.
type Group struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]inflight
}

type inflight struct {
	id     uint64
	cancel context.CancelCauseFunc
}

func NewGroup() *Group {
	return &Group{inflight: make(map[string]inflight)}
}

// Call is one request started in a Group.
type Call struct {
	g   *Group
	key string
	id  uint64
	ctx context.Context
}

// Start registers a new request under key and supersedes the previous one.
func (g *Group) Start(ctx context.Context, key string) *Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.inflight[key]; ok {
		prev.cancel(ErrSuperseded)
	}

	g.seq++
	reqCtx, cancel := context.WithCancelCause(ctx)
	g.inflight[key] = inflight{id: g.seq, cancel: cancel}

	return &Call{g: g, key: key, id: g.seq, ctx: reqCtx}
}

// Context is cancelled with ErrSuperseded once a newer call starts under the same key.
func (c *Call) Context() context.Context {
	return c.ctx
}

// Finish releases the key and reports whether c was still current. apply runs
// only for a current call, under the group lock, so a newer call cannot start
// or deliver in between. apply must not call back into the group.
func (c *Call) Finish(apply func()) bool {
	g := c.g
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.inflight[c.key]
	if !ok || cur.id != c.id {
		return false
	}
	delete(g.inflight, c.key)
	cur.cancel(nil)

	if apply != nil {
		apply()
	}
	return true
}

// Cancel aborts the in-flight request for key, if any.
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.inflight[key]; ok {
		cur.cancel(ErrSuperseded)
		delete(g.inflight, key)
	}
}

// CancelAll aborts every in-flight request.
func (g *Group) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, cur := range g.inflight {
		cur.cancel(ErrSuperseded)
		delete(g.inflight, key)
	}
}

// Pending reports whether a request is in flight for key.
func (g *Group) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.inflight[key]
	return ok
}

// Run executes fn under key. A result that arrives after a newer request for
// the same key has started is discarded and ErrSuperseded is returned, even if
// fn completed successfully. apply, when non-nil, receives the result of a
// call that is still current; see Call.Finish.
func Run[T any](
	ctx context.Context,
	g *Group,
	key string,
	fn func(ctx context.Context) (T, error),
	apply func(T, error),
) (T, error) {
	call := g.Start(ctx, key)
	return finish(call, fn, apply)
}

func finish[T any](call *Call, fn func(ctx context.Context) (T, error), apply func(T, error)) (T, error) {
	v, err := fn(call.ctx)

	var zero T
	if errors.Is(context.Cause(call.ctx), ErrSuperseded) {
		call.Finish(nil)
		return zero, ErrSuperseded
	}

	var deliver func()
	if apply != nil {
		deliver = func() { apply(v, err) }
	}
	if !call.Finish(deliver) {
		return zero, ErrSuperseded
	}

	return v, err
}
