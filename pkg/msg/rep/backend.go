package rep

import (
	"bufio"
	"context"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// backend owns the listening transport and the keyed map of peer sessions,
// confined to a single driver-loop goroutine (run) so that map is never
// touched concurrently (spec §4.2; grounded on pkg/mcast/core/transport.go's
// single poll goroutine and pkg/mcast/core/peer.go's Peer.poll).
type backend struct {
	transport transport.ServerTransport
	opts      Options
	codec     *wire.ReqRepCodec
	authCodec *wire.AuthCodec
	requests  chan *Request
	invoker   core.Invoker
	metrics   *metrics

	peers      map[string]*peerSession
	register   chan *peerSession
	unregister chan string
}

type acceptedConn struct {
	conn transport.Io
	addr string
}

func newBackend(t transport.ServerTransport, opts Options, requests chan *Request) *backend {
	return &backend{
		transport:  t,
		opts:       opts,
		codec:      opts.codec(),
		authCodec:  wire.NewAuthCodec(),
		requests:   requests,
		metrics:    newMetrics(opts.Registerer),
		peers:      make(map[string]*peerSession),
		register:   make(chan *peerSession),
		unregister: make(chan string),
	}
}

func (b *backend) run(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	b.invoker = core.NewInvoker(ctx)
	acceptCh := make(chan acceptedConn)

	go func() {
		for {
			conn, addr, err := b.transport.Accept(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.opts.Logger.Errorf("rep: accept failed, shutting down backend: %v", err)
					stop()
				}
				return
			}
			select {
			case acceptCh <- acceptedConn{conn, addr}:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			close(b.requests)
			_ = b.invoker.Wait()
			return

		case ac := <-acceptCh:
			if b.opts.MaxConnections > 0 && len(b.peers) >= b.opts.MaxConnections {
				b.opts.Logger.Warnf("rep: max connections reached, rejecting %s", ac.addr)
				ac.conn.Close()
				continue
			}
			b.invoker.Spawn(func() { b.admit(ctx, ac) })

		case session := <-b.register:
			b.peers[session.addr] = session
			b.metrics.peerConnected()

		case addr := <-b.unregister:
			delete(b.peers, addr)
			b.metrics.peerDisconnected()
		}
	}
}

func (b *backend) admit(ctx context.Context, ac acceptedConn) {
	br := bufio.NewReader(ac.conn)
	bw := bufio.NewWriter(ac.conn)

	accepted, err := core.HandshakeServer(br, bw, b.opts.Authenticator, b.authCodec, false)
	if err != nil || !accepted {
		ac.conn.Close()
		return
	}

	session := newPeerSessionFromBuffers(ctx, ac.addr, ac.conn, br, bw, b.requests, b.codec, b.invoker, b.opts.Logger)

	select {
	case b.register <- session:
	case <-ctx.Done():
		ac.conn.Close()
		return
	}

	b.invoker.Spawn(func() { session.readLoop(b.metrics.requestReceived) })
	b.invoker.Spawn(session.writeLoop)

	<-session.ctx.Done()
	ac.conn.Close()

	select {
	case b.unregister <- ac.addr:
	case <-ctx.Done():
	}
}
