package pub

import (
	"bytes"
	"context"

	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// PubSocket is the publish side of a PUB/SUB pair. Grounded on
// original_source/msg-socket/src/pub/mod.rs's PubSocket; Publish is
// fire-and-forget, with backpressure absorbed entirely by each
// subscriber's drop-oldest session ring (spec §4.4).
type PubSocket struct {
	opts      Options
	transport transport.ServerTransport
	codec     *wire.PubSubCodec

	localAddr string
	backend   *backend
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPubSocket builds an inactive PubSocket over t.
func NewPubSocket(t transport.ServerTransport, opts ...Option) *PubSocket {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &PubSocket{opts: o, transport: t, codec: o.codec()}
}

// Bind starts the backend driver loop listening on addr.
func (s *PubSocket) Bind(addr string) error {
	if err := s.transport.Bind(addr); err != nil {
		return err
	}
	local, err := s.transport.LocalAddr()
	if err != nil {
		return err
	}
	s.localAddr = local

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.done = make(chan struct{})

	s.backend = newBackend(s.transport, s.opts)
	go func() {
		defer close(s.done)
		s.backend.run(ctx)
	}()

	s.opts.Logger.Infof("pub: listening on %s", s.localAddr)
	return nil
}

// LocalAddr returns the resolved bind address.
func (s *PubSocket) LocalAddr() string { return s.localAddr }

// Publish encodes (topic, payload) once and hands it to the backend for
// fan-out; it never blocks on a slow subscriber.
func (s *PubSocket) Publish(topic string, payload []byte) error {
	if s.backend == nil {
		return types.ErrSocketClosed
	}
	var buf bytes.Buffer
	if err := s.codec.EncodeData(&buf, types.PubSubMessage{Topic: topic, Payload: payload}); err != nil {
		return err
	}
	select {
	case s.backend.publish <- publishCmd{topic: topic, frame: buf.Bytes()}:
		return nil
	case <-s.ctx.Done():
		return types.ErrSocketClosed
	}
}

// Close cancels the backend and waits for it to drain.
func (s *PubSocket) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return s.transport.Close()
}
