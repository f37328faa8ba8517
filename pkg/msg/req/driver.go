package req

import (
	"bufio"
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// result is delivered to a Request caller exactly once.
type result struct {
	payload []byte
	err     error
}

// commandReq is one Request call handed to the driver loop.
type commandReq struct {
	payload []byte
	resultC chan result
}

type pendingEntry struct {
	resultC chan result
	timer   *time.Timer
}

// connEstablished is sent by the connect/reconnect goroutine once the
// handshake succeeds.
type connEstablished struct {
	conn transport.Io
	br   *bufio.Reader
	bw   *bufio.Writer
}

// driver is the single goroutine that owns the pending-request table, the
// current connection, and the reconnect state machine (spec §4.3). No
// mutex guards the table: every mutation is a case in this goroutine's
// select, exactly mirroring the teacher's single-poll-goroutine-owns-state
// style (pkg/mcast/core/peer.go's Peer.poll), generalized from a consensus
// peer to a request/reply client.
type driver struct {
	addr  string
	opts  Options
	codec *wire.ReqRepCodec
	auth  *wire.AuthCodec
	token *core.Token

	client  transport.ClientTransport
	metrics *metrics

	cmdCh      chan commandReq
	inboundCh  chan types.ReqRepMessage
	timeoutCh  chan uint32
	connLostCh chan struct{}
	connOKCh   chan connEstablished
	connFailCh chan error

	connectedSignal chan struct{} // closed once, on first successful connect or terminal failure
	connErr         error         // set by run() before closing connectedSignal on terminal failure
}

func newDriver(addr string, client transport.ClientTransport, opts Options) *driver {
	var token *core.Token
	if len(opts.AuthToken) > 0 {
		token = core.NewToken(opts.AuthToken)
	}
	return &driver{
		addr:            addr,
		opts:            opts,
		codec:           opts.codec(),
		auth:            wire.NewAuthCodec(),
		token:           token,
		client:          client,
		metrics:         newMetrics(opts.Registerer),
		cmdCh:           make(chan commandReq, opts.CommandBufferSize),
		inboundCh:       make(chan types.ReqRepMessage, opts.CommandBufferSize),
		timeoutCh:       make(chan uint32, 1),
		connLostCh:      make(chan struct{}, 1),
		connOKCh:        make(chan connEstablished, 1),
		connFailCh:      make(chan error, 1),
		connectedSignal: make(chan struct{}),
	}
}

// run is the driver loop. It owns: nextID, pending, and whether a
// connection is currently live.
func (d *driver) run(ctx context.Context) {
	var (
		nextID  uint32
		pending = make(map[uint32]*pendingEntry)
		outbox  []commandReq
		conn    transport.Io
		bw      *bufio.Writer
		live    bool
	)

	fail := func(id uint32, err error) {
		if e, ok := pending[id]; ok {
			e.timer.Stop()
			e.resultC <- result{err: err}
			delete(pending, id)
		}
	}

	failAll := func(err error) {
		for id := range pending {
			fail(id, err)
		}
	}

	reconnectOnce := func() {
		d.invokeConnect(ctx)
	}
	reconnectOnce()

	for {
		select {
		case <-ctx.Done():
			failAll(types.ErrSocketClosed)
			for _, c := range outbox {
				c.resultC <- result{err: types.ErrSocketClosed}
			}
			if conn != nil {
				conn.Close()
			}
			return

		case est := <-d.connOKCh:
			conn = est.conn
			bw = est.bw
			live = true
			d.metrics.reconnected()
			select {
			case <-d.connectedSignal:
			default:
				close(d.connectedSignal)
			}
			go d.readLoop(ctx, est.br)

			for _, c := range outbox {
				id := nextID
				nextID++
				pending[id] = &pendingEntry{resultC: c.resultC, timer: time.AfterFunc(d.opts.Timeout, func() {
					select {
					case d.timeoutCh <- id:
					case <-ctx.Done():
					}
				})}
				if err := d.writeFrame(bw, id, c.payload); err != nil {
					fail(id, types.ErrConnectionLost)
				}
			}
			outbox = outbox[:0]

		case <-d.connLostCh:
			if !live {
				continue
			}
			live = false
			if conn != nil {
				conn.Close()
				conn = nil
			}
			failAll(types.ErrConnectionLost)
			go reconnectOnce()

		case err := <-d.connFailCh:
			// Connecting has given up permanently (auth rejection, or the
			// reconnect policy exhausted itself). No further reconnect is
			// attempted: surface the failure to every caller instead of
			// leaving them pending forever.
			if d.connErr != nil {
				continue
			}
			d.connErr = err
			failAll(err)
			for _, c := range outbox {
				c.resultC <- result{err: err}
			}
			outbox = outbox[:0]
			select {
			case <-d.connectedSignal:
			default:
				close(d.connectedSignal)
			}

		case cmd := <-d.cmdCh:
			if d.connErr != nil {
				cmd.resultC <- result{err: d.connErr}
				continue
			}
			d.metrics.requestIssued()
			if !live {
				if d.opts.BlockOnReconnect {
					outbox = append(outbox, cmd)
				} else {
					cmd.resultC <- result{err: types.ErrConnectionLost}
				}
				continue
			}
			id := nextID
			nextID++
			pending[id] = &pendingEntry{
				resultC: cmd.resultC,
				timer: time.AfterFunc(d.opts.Timeout, func() {
					select {
					case d.timeoutCh <- id:
					case <-ctx.Done():
					}
				}),
			}
			if err := d.writeFrame(bw, id, cmd.payload); err != nil {
				d.logger().Debugf("req: write error: %v", err)
				fail(id, types.ErrConnectionLost)
				select {
				case d.connLostCh <- struct{}{}:
				default:
				}
			}

		case msg := <-d.inboundCh:
			if e, ok := pending[msg.ID]; ok {
				e.timer.Stop()
				e.resultC <- result{payload: msg.Payload}
				delete(pending, msg.ID)
			}

		case id := <-d.timeoutCh:
			if _, ok := pending[id]; ok {
				d.metrics.timedOut()
				fail(id, types.ErrTimeout)
			}
		}
	}
}

func (d *driver) send(bw *bufio.Writer, id uint32, cmd commandReq) {
	if err := d.writeFrame(bw, id, cmd.payload); err != nil {
		cmd.resultC <- result{err: types.ErrConnectionLost}
	}
}

func (d *driver) writeFrame(bw *bufio.Writer, id uint32, payload []byte) error {
	if bw == nil {
		return types.ErrConnectionLost
	}
	if err := d.codec.Encode(bw, types.ReqRepMessage{ID: id, Payload: payload}); err != nil {
		return err
	}
	return bw.Flush()
}

func (d *driver) readLoop(ctx context.Context, br *bufio.Reader) {
	for {
		msg, err := d.codec.Decode(br)
		if err != nil {
			select {
			case d.connLostCh <- struct{}{}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case d.inboundCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// invokeConnect runs one backoff-governed connect attempt loop (inline in
// the driver goroutine for the first connect, on a fresh goroutine for each
// reconnect) until it succeeds, ctx is done, or the failure is permanent
// (auth rejection). A permanent failure is reported on connFailCh so the
// driver loop can fail every pending and queued caller instead of hanging
// them indefinitely waiting on a reconnect that will never come.
func (d *driver) invokeConnect(ctx context.Context) {
	bo := backoff.WithContext(d.opts.Reconnect.NewBackOff(), ctx)
	err := backoff.Retry(func() error {
		conn, err := d.client.Connect(ctx, d.addr, d.opts.ConnectOptions)
		if err != nil {
			d.logger().Debugf("req: connect to %s failed: %v", d.addr, err)
			return err
		}
		br := bufio.NewReader(conn)
		bw := bufio.NewWriter(conn)
		if err := core.HandshakeClient(br, bw, d.token, d.auth); err != nil {
			conn.Close()
			if err == types.ErrAuthRejected {
				return backoff.Permanent(err)
			}
			return err
		}
		select {
		case d.connOKCh <- connEstablished{conn: conn, br: br, bw: bw}:
		case <-ctx.Done():
			conn.Close()
		}
		return nil
	}, bo)
	if err != nil && ctx.Err() == nil {
		select {
		case d.connFailCh <- err:
		case <-ctx.Done():
		}
	}
}

func (d *driver) logger() types.Logger { return d.opts.Logger }
