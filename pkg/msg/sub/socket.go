package sub

import (
	"context"

	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
)

// SubSocket is the subscribe side of a PUB/SUB pair. It may be connected to
// many publishers at once; Next dequeues from a single channel merging
// every peer's decoded messages (spec §4.5).
type SubSocket struct {
	opts   Options
	client transport.ClientTransport

	driver *driver
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubSocket builds an inactive SubSocket over t.
func NewSubSocket(t transport.ClientTransport, opts ...Option) *SubSocket {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &SubSocket{opts: o, client: t}
}

// Start launches the driver loop. Individual publisher connections are
// added with Connect.
func (s *SubSocket) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.driver = newDriver(s.client, s.opts)
	go func() {
		defer close(s.done)
		s.driver.run(ctx)
	}()
}

// Connect adds addr as a publisher peer. The peer connects and reconnects
// in the background; Connect itself does not block on the handshake.
func (s *SubSocket) Connect(ctx context.Context, addr string) error {
	select {
	case s.driver.connectCh <- addr:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe adds topic to the authoritative subscription set and broadcasts
// it to every connected peer, blocking until every peer's send has been
// attempted.
func (s *SubSocket) Subscribe(ctx context.Context, topic string) error {
	return s.mutate(ctx, topic, true)
}

// Unsubscribe removes topic from the authoritative subscription set.
func (s *SubSocket) Unsubscribe(ctx context.Context, topic string) error {
	return s.mutate(ctx, topic, false)
}

func (s *SubSocket) mutate(ctx context.Context, topic string, subscribe bool) error {
	ack := make(chan struct{})
	cmd := subscribeCmd{topic: topic, subscribe: subscribe, ackCh: ack}
	select {
	case s.driver.subscribeCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks until a message arrives on any connected peer, ctx is
// canceled, or the socket closes.
func (s *SubSocket) Next(ctx context.Context) (types.PubSubMessage, error) {
	select {
	case msg, ok := <-s.driver.ingress:
		if !ok {
			return types.PubSubMessage{}, types.ErrSocketClosed
		}
		return msg, nil
	case <-ctx.Done():
		return types.PubSubMessage{}, ctx.Err()
	}
}

// Close stops the driver loop and every peer connection.
func (s *SubSocket) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}
