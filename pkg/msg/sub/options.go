// Package sub implements the SUB (subscribe) socket: frontend, multi-peer
// driver loop, and per-publisher peer session.
package sub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/definition"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// DefaultIngressBufferSize is the capacity of the channel merging decoded
// messages from every connected peer, exposed to the user via Next.
const DefaultIngressBufferSize = 1024

// Options configures a SubSocket.
type Options struct {
	// IngressBufferSize bounds the merged ingress channel; a full channel
	// blocks the offending peer's read goroutine, the socket's only
	// backpressure point (spec §4.5).
	IngressBufferSize int

	// Reconnect configures the exponential backoff used per peer while
	// reconnecting.
	Reconnect core.ReconnectPolicy

	// AuthToken, if non-empty, is presented during the handshake on every
	// (re)connect to every peer.
	AuthToken []byte

	MaxFrameSize   uint32
	Logger         types.Logger
	Registerer     prometheus.Registerer
	ConnectOptions transport.ConnectOptions
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		IngressBufferSize: DefaultIngressBufferSize,
		Reconnect:         core.DefaultReconnectPolicy(),
		Logger:            definition.NewDefaultLogger(),
		ConnectOptions:    transport.DefaultConnectOptions(),
	}
}

func WithIngressBufferSize(n int) Option {
	return func(o *Options) { o.IngressBufferSize = n }
}

func WithReconnectPolicy(p core.ReconnectPolicy) Option {
	return func(o *Options) { o.Reconnect = p }
}

func WithAuthToken(token []byte) Option { return func(o *Options) { o.AuthToken = token } }

func WithMaxFrameSize(n uint32) Option { return func(o *Options) { o.MaxFrameSize = n } }

func WithLogger(l types.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) { o.Registerer = r }
}

func (o Options) codec() *wire.PubSubCodec {
	c := wire.NewPubSubCodec()
	if o.MaxFrameSize > 0 {
		c.MaxFrameSize = o.MaxFrameSize
	}
	return c
}
