// Package core holds the seams shared by every socket backend: a tracked
// goroutine group (Invoker), the Authenticator hook and handshake helpers,
// and the REQ/SUB reconnect policy.
package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Invoker spawns and tracks goroutines on behalf of a backend, so the
// backend can wait for every in-flight response-producing goroutine to
// finish (or be canceled) on shutdown. This is the Go realization of the
// teacher's Invoker/TestInvoker (pkg/mcast/core/peer.go, test/testing.go),
// built on golang.org/x/sync/errgroup so a backend also gets a derived
// context. Spawned functions return nothing, so no error is ever
// propagated through the group.
type Invoker interface {
	// Spawn tracks and runs f in a new goroutine.
	Spawn(f func())

	// Wait blocks until every spawned goroutine has returned. It always
	// returns nil, since spawned functions cannot report an error.
	Wait() error

	// Context returns a context derived from the parent; it is canceled
	// when the parent is done or when Wait returns.
	Context() context.Context
}

type groupInvoker struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewInvoker returns an Invoker whose Context is derived from parent.
func NewInvoker(parent context.Context) Invoker {
	g, ctx := errgroup.WithContext(parent)
	return &groupInvoker{group: g, ctx: ctx}
}

func (i *groupInvoker) Spawn(f func()) {
	i.group.Go(func() error {
		f()
		return nil
	})
}

func (i *groupInvoker) Wait() error {
	return i.group.Wait()
}

func (i *groupInvoker) Context() context.Context {
	return i.ctx
}
