package rep

import (
	"bufio"
	"context"

	"github.com/google/uuid"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// peerSession is the per-connection runtime state described in spec §3/§4.2.
// Grounded on pkg/mcast/core/peer.go's Peer: a read side that decodes and
// forwards, a response join (here: one goroutine per pending reply,
// realizing the spec's "join-set"), and a write side draining an egress
// queue — but expressed as three plain goroutines over channels instead of
// a hand-rolled poll loop, which is the idiomatic Go shape for the same
// job.
type peerSession struct {
	id      uuid.UUID
	addr    string
	conn    transport.Io
	br      *bufio.Reader
	bw      *bufio.Writer
	codec   *wire.ReqRepCodec
	egress  chan types.ReqRepMessage
	pending chan<- *Request
	invoker core.Invoker
	logger  types.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

const egressBufferSize = 256

func newPeerSessionFromBuffers(parent context.Context, addr string, conn transport.Io, br *bufio.Reader, bw *bufio.Writer, pending chan<- *Request, codec *wire.ReqRepCodec, invoker core.Invoker, logger types.Logger) *peerSession {
	ctx, cancel := context.WithCancel(parent)
	return &peerSession{
		id:      uuid.New(),
		addr:    addr,
		conn:    conn,
		br:      br,
		bw:      bw,
		codec:   codec,
		egress:  make(chan types.ReqRepMessage, egressBufferSize),
		pending: pending,
		invoker: invoker,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// readLoop decodes requests off the wire and forwards them to the shared,
// bounded request channel. The blocking send on p.pending is the
// backpressure mechanism: when the frontend's channel is full, this
// goroutine stops pulling bytes off the connection (spec §4.2 Ingress).
func (p *peerSession) readLoop(onRequest func()) {
	defer p.cancel()
	for {
		msg, err := p.codec.Decode(p.br)
		if err != nil {
			p.logger.Debugf("rep: peer %s read error: %v", p.addr, err)
			return
		}

		replyCh := make(chan []byte, 1)
		req := &Request{source: p.addr, msg: msg.Payload, reply: replyCh}

		select {
		case p.pending <- req:
		case <-p.ctx.Done():
			return
		}
		if onRequest != nil {
			onRequest()
		}

		id := msg.ID
		p.invoker.Spawn(func() {
			select {
			case payload, ok := <-replyCh:
				if !ok {
					return
				}
				select {
				case p.egress <- types.ReqRepMessage{ID: id, Payload: payload}:
				case <-p.ctx.Done():
				}
			case <-p.ctx.Done():
			}
		})
	}
}

// writeLoop drains the egress queue onto the wire in response-completion
// order (spec §4.2 Egress / Ordering).
func (p *peerSession) writeLoop() {
	defer p.cancel()
	for {
		select {
		case msg := <-p.egress:
			if err := p.codec.Encode(p.bw, msg); err != nil {
				p.logger.Debugf("rep: peer %s write error: %v", p.addr, err)
				return
			}
			if err := p.bw.Flush(); err != nil {
				p.logger.Debugf("rep: peer %s flush error: %v", p.addr, err)
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}
