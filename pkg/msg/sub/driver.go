package sub

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// subscribeCmd is one Subscribe/Unsubscribe call handed to the driver loop.
type subscribeCmd struct {
	topic     string
	subscribe bool
	ackCh     chan struct{}
}

// driver is the single goroutine owning the authoritative topic set and the
// map of connected peers (spec §4.5), generalizing rep.backend's
// driver-loop-owns-state shape to a fan-in-from-many-peers client.
type driver struct {
	opts    Options
	client  transport.ClientTransport
	token   *core.Token
	metrics *metrics
	invoker core.Invoker

	ingress chan types.PubSubMessage

	peers  map[string]*peer
	topics map[string]struct{}

	connectCh   chan string
	readyCh     chan peerReady
	failedCh    chan peerFailed
	subscribeCh chan subscribeCmd
}

func newDriver(client transport.ClientTransport, opts Options) *driver {
	var token *core.Token
	if len(opts.AuthToken) > 0 {
		token = core.NewToken(opts.AuthToken)
	}
	return &driver{
		opts:        opts,
		client:      client,
		token:       token,
		metrics:     newMetrics(opts.Registerer),
		ingress:     make(chan types.PubSubMessage, opts.IngressBufferSize),
		peers:       make(map[string]*peer),
		topics:      make(map[string]struct{}),
		connectCh:   make(chan string),
		readyCh:     make(chan peerReady, 8),
		failedCh:    make(chan peerFailed, 8),
		subscribeCh: make(chan subscribeCmd),
	}
}

func (d *driver) run(ctx context.Context) {
	d.invoker = core.NewInvoker(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = d.invoker.Wait()
			// Every peer's read goroutine has exited, so nothing sends on
			// ingress any more; closing it makes Next report ErrSocketClosed.
			close(d.ingress)
			return

		case addr := <-d.connectCh:
			if _, ok := d.peers[addr]; ok {
				continue
			}
			p := newPeer(addr, d.client, d.opts, d.token, d.ingress, d.metrics, d.readyCh, d.failedCh)
			d.peers[addr] = p
			d.invoker.Spawn(func() { p.run(ctx) })

		case ready := <-d.readyCh:
			p, ok := d.peers[ready.addr]
			if !ok {
				continue
			}
			for topic := range d.topics {
				p.send(wire.PubSubFrame{Tag: wire.TagSubscribe, Topic: topic})
			}

		case failed := <-d.failedCh:
			// The peer already returned from run() after reporting this;
			// drop it from the map so a stale, permanently-dead entry
			// doesn't linger and so re-Connect(addr) can start fresh.
			d.opts.Logger.Warnf("sub: peer %s rejected permanently: %v", failed.addr, failed.err)
			delete(d.peers, failed.addr)

		case cmd := <-d.subscribeCh:
			if cmd.subscribe {
				d.topics[cmd.topic] = struct{}{}
			} else {
				delete(d.topics, cmd.topic)
			}
			tag := wire.TagUnsubscribe
			if cmd.subscribe {
				tag = wire.TagSubscribe
			}
			frame := wire.PubSubFrame{Tag: tag, Topic: cmd.topic}
			peersSnapshot := make([]*peer, 0, len(d.peers))
			for _, p := range d.peers {
				peersSnapshot = append(peersSnapshot, p)
			}
			go func() {
				broadcast(peersSnapshot, frame)
				close(cmd.ackCh)
			}()
		}
	}
}

// broadcast fans frame out to every peer concurrently via errgroup,
// generalizing the teacher's errgroup-backed Invoker to a one-shot
// fan-out instead of a long-lived task group.
func broadcast(peers []*peer, frame wire.PubSubFrame) {
	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			p.send(frame)
			return nil
		})
	}
	_ = g.Wait()
}
