package req

import (
	"context"

	"github.com/jabolina/go-msg/pkg/msg/transport"
)

// ReqSocket is the request side of a REQ/REP pair. Grounded on
// original_source/msg-socket/src/req/mod.rs's ReqSocket, realized as a
// Go struct backed by a single driver-loop goroutine instead of a
// poll_next state machine.
type ReqSocket struct {
	opts   Options
	client transport.ClientTransport

	driver *driver
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReqSocket builds an inactive ReqSocket over t.
func NewReqSocket(t transport.ClientTransport, opts ...Option) *ReqSocket {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &ReqSocket{opts: o, client: t}
}

// Connect starts the driver loop dialing addr. If Options.BlockingConnect
// is set, Connect blocks until the first handshake succeeds or ctx is done.
func (s *ReqSocket) Connect(ctx context.Context, addr string) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.driver = newDriver(addr, s.client, s.opts)
	go func() {
		defer close(s.done)
		s.driver.run(runCtx)
	}()

	if s.opts.BlockingConnect {
		select {
		case <-s.driver.connectedSignal:
			if s.driver.connErr != nil {
				return s.driver.connErr
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Request sends payload and blocks for the matching reply, a timeout, ctx
// cancellation, or socket closure.
func (s *ReqSocket) Request(ctx context.Context, payload []byte) ([]byte, error) {
	resultC := make(chan result, 1)
	cmd := commandReq{payload: payload, resultC: resultC}

	select {
	case s.driver.cmdCh <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-resultC:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the driver loop, failing any pending or queued requests.
func (s *ReqSocket) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}
