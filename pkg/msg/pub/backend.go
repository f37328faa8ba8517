package pub

import (
	"bufio"
	"context"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// publishCmd carries one already-encoded frame from PubSocket.Publish into
// the driver loop, the only goroutine allowed to walk the session set.
type publishCmd struct {
	topic string
	frame []byte
}

type acceptedConn struct {
	conn transport.Io
	addr string
}

// backend owns the listening transport and the set of subscriber sessions,
// run as a single driver-loop goroutine (spec §4.4), mirroring rep.backend's
// shape but fanning frames out instead of routing replies back.
type backend struct {
	transport transport.ServerTransport
	opts      Options
	codec     *wire.PubSubCodec
	authCodec *wire.AuthCodec
	invoker   core.Invoker
	metrics   *metrics

	sessions   map[string]*session
	register   chan *session
	unregister chan string
	control    chan controlFrame
	publish    chan publishCmd
}

func newBackend(t transport.ServerTransport, opts Options) *backend {
	return &backend{
		transport:  t,
		opts:       opts,
		codec:      opts.codec(),
		authCodec:  wire.NewAuthCodec(),
		metrics:    newMetrics(opts.Registerer),
		sessions:   make(map[string]*session),
		register:   make(chan *session),
		unregister: make(chan string),
		control:    make(chan controlFrame),
		publish:    make(chan publishCmd, 256),
	}
}

func (b *backend) run(ctx context.Context) {
	b.invoker = core.NewInvoker(ctx)
	acceptCh := make(chan acceptedConn)

	go func() {
		for {
			conn, addr, err := b.transport.Accept(ctx)
			if err != nil {
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
			_ = b.invoker.Wait()
			return

		case ac := <-acceptCh:
			if b.opts.MaxConnections > 0 && len(b.sessions) >= b.opts.MaxConnections {
				b.opts.Logger.Warnf("pub: max connections reached, rejecting %s", ac.addr)
				ac.conn.Close()
				continue
			}
			b.invoker.Spawn(func() { b.admit(ctx, ac) })

		case sess := <-b.register:
			b.sessions[sess.addr] = sess
			b.metrics.subscriberConnected()

		case addr := <-b.unregister:
			delete(b.sessions, addr)
			b.metrics.subscriberDisconnected()

		case cf := <-b.control:
			switch cf.tag {
			case wire.TagSubscribe:
				cf.session.topics[cf.topic] = struct{}{}
			case wire.TagUnsubscribe:
				delete(cf.session.topics, cf.topic)
			}

		case cmd := <-b.publish:
			for _, sess := range b.sessions {
				if sess.subscribed(cmd.topic) {
					before := sess.Dropped()
					sess.enqueue(cmd.frame)
					b.metrics.messagesDropped(int(sess.Dropped() - before))
				}
			}
		}
	}
}

func (b *backend) admit(ctx context.Context, ac acceptedConn) {
	br := bufio.NewReader(ac.conn)
	bw := bufio.NewWriter(ac.conn)

	accepted, err := core.HandshakeServer(br, bw, b.opts.Authenticator, b.authCodec, true)
	if err != nil || !accepted {
		ac.conn.Close()
		return
	}

	sess := newSession(ctx, ac.addr, ac.conn, br, bw, b.codec, b.control, b.opts.Logger, b.opts.SessionBufferSize, b.opts.BackpressureBoundary)

	select {
	case b.register <- sess:
	case <-ctx.Done():
		ac.conn.Close()
		return
	}

	b.invoker.Spawn(sess.readLoop)
	b.invoker.Spawn(func() { sess.writeLoop(b.opts.FlushInterval) })

	<-sess.ctx.Done()
	ac.conn.Close()

	select {
	case b.unregister <- ac.addr:
	case <-ctx.Done():
	}
}
