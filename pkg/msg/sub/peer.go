package sub

import (
	"bufio"
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// peerReady is sent to the driver every time peer re-establishes a
// connection, so the driver can resend the authoritative subscription set
// (spec §4.5: "newly-connected peers receive them on handshake
// completion").
type peerReady struct {
	addr string
}

// peerFailed is sent to the driver when a peer gives up reconnecting
// permanently (an auth rejection), so the driver can stop treating it as
// live instead of leaving a dead entry in its peer map forever.
type peerFailed struct {
	addr string
	err  error
}

// peer owns one publisher connection: it reconnects with backoff on loss,
// decodes TagData frames straight onto the shared ingress channel, and
// drains a per-peer control channel of subscribe/unsubscribe frames fed by
// the driver. It is the sub-package analog of req.driver's reconnect loop,
// generalized to carry no request/reply state.
type peer struct {
	addr     string
	client   transport.ClientTransport
	opts     Options
	codec    *wire.PubSubCodec
	auth     *wire.AuthCodec
	token    *core.Token
	ingress  chan<- types.PubSubMessage
	metrics  *metrics
	readyCh  chan<- peerReady
	failedCh chan<- peerFailed

	control chan wire.PubSubFrame
}

func newPeer(addr string, client transport.ClientTransport, opts Options, token *core.Token, ingress chan<- types.PubSubMessage, metrics *metrics, readyCh chan<- peerReady, failedCh chan<- peerFailed) *peer {
	return &peer{
		addr:     addr,
		client:   client,
		opts:     opts,
		codec:    opts.codec(),
		auth:     wire.NewAuthCodec(),
		token:    token,
		ingress:  ingress,
		metrics:  metrics,
		readyCh:  readyCh,
		failedCh: failedCh,
		control:  make(chan wire.PubSubFrame, 64),
	}
}

// send posts a subscribe/unsubscribe control frame to be written on the
// next live connection. Dropped silently if the peer has no connection and
// its control buffer is full; the driver resends the full set on reconnect.
func (p *peer) send(frame wire.PubSubFrame) {
	select {
	case p.control <- frame:
	default:
	}
}

// run reconnects forever until ctx is done or the peer is permanently
// rejected by the publisher's Authenticator, in which case it gives up and
// reports itself to the driver instead of busy-looping with no backoff.
func (p *peer) run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, br, bw, err := p.connect(ctx)
		if err != nil {
			if err == types.ErrAuthRejected {
				select {
				case p.failedCh <- peerFailed{addr: p.addr, err: err}:
				case <-ctx.Done():
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case p.readyCh <- peerReady{addr: p.addr}:
		case <-ctx.Done():
			conn.Close()
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			p.readLoop(ctx, br)
		}()
		p.writeLoop(ctx, bw, done)
		conn.Close()
		<-done
	}
}

func (p *peer) connect(ctx context.Context) (transport.Io, *bufio.Reader, *bufio.Writer, error) {
	var (
		conn transport.Io
		br   *bufio.Reader
		bw   *bufio.Writer
	)
	bo := backoff.WithContext(p.opts.Reconnect.NewBackOff(), ctx)
	err := backoff.Retry(func() error {
		c, err := p.client.Connect(ctx, p.addr, p.opts.ConnectOptions)
		if err != nil {
			return err
		}
		r := bufio.NewReader(c)
		w := bufio.NewWriter(c)
		if err := core.HandshakeClient(r, w, p.token, p.auth); err != nil {
			c.Close()
			if err == types.ErrAuthRejected {
				return backoff.Permanent(err)
			}
			return err
		}
		conn, br, bw = c, r, w
		return nil
	}, bo)
	return conn, br, bw, err
}

func (p *peer) readLoop(ctx context.Context, br *bufio.Reader) {
	for {
		frame, err := p.codec.Decode(br)
		if err != nil {
			return
		}
		if frame.Tag != wire.TagData {
			continue
		}
		p.metrics.messageReceived()
		select {
		case p.ingress <- types.PubSubMessage{Topic: frame.Topic, Payload: frame.Payload}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *peer) writeLoop(ctx context.Context, bw *bufio.Writer, readerDone <-chan struct{}) {
	for {
		select {
		case frame := <-p.control:
			if err := p.codec.Encode(bw, frame); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-ctx.Done():
			return
		}
	}
}
