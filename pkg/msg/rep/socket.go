package rep

import (
	"context"

	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
)

// RepSocket is the reply side of a REQ/REP pair. Grounded on
// original_source/msg-socket/src/rep/mod.rs's RepSocket, realized as a
// Go struct whose Next blocks on a channel instead of implementing
// Stream::poll_next.
type RepSocket struct {
	opts      Options
	transport transport.ServerTransport

	requests  chan *Request
	localAddr string
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRepSocket builds an inactive RepSocket over t.
func NewRepSocket(t transport.ServerTransport, opts ...Option) *RepSocket {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &RepSocket{opts: o, transport: t}
}

// Bind starts the backend driver loop listening on addr.
func (s *RepSocket) Bind(addr string) error {
	if err := s.transport.Bind(addr); err != nil {
		return err
	}
	local, err := s.transport.LocalAddr()
	if err != nil {
		return err
	}
	s.localAddr = local

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.requests = make(chan *Request, s.opts.RequestBufferSize)

	b := newBackend(s.transport, s.opts, s.requests)
	go func() {
		defer close(s.done)
		b.run(ctx)
	}()

	s.opts.Logger.Infof("rep: listening on %s", s.localAddr)
	return nil
}

// LocalAddr returns the resolved bind address.
func (s *RepSocket) LocalAddr() string { return s.localAddr }

// Next blocks until a request arrives, ctx is canceled, or the socket
// closes.
func (s *RepSocket) Next(ctx context.Context) (*Request, error) {
	select {
	case req, ok := <-s.requests:
		if !ok {
			return nil, types.ErrSocketClosed
		}
		return req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the backend and waits for it to drain.
func (s *RepSocket) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return s.transport.Close()
}
