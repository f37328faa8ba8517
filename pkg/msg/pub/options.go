// Package pub implements the PUB (publish) socket: accept loop, per-subscriber
// session fan-out with a drop-oldest ring buffer, and topic filtering.
package pub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/definition"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// DefaultSessionBufferSize is the per-subscriber ring capacity in messages.
const DefaultSessionBufferSize = 1024

// DefaultBackpressureBoundary is the per-subscriber high-water byte bound.
const DefaultBackpressureBoundary = 8192

// DefaultFlushInterval paces the ticker that drains session buffers onto
// the wire when a write isn't already in flight.
const DefaultFlushInterval = 100 * time.Microsecond

// Options configures a PubSocket.
type Options struct {
	// MaxConnections caps concurrently admitted subscribers; 0 means
	// unbounded.
	MaxConnections int

	// Authenticator, if set, gates every inbound connection.
	Authenticator core.Authenticator

	// SessionBufferSize is the per-subscriber ring capacity, in messages.
	SessionBufferSize int

	// BackpressureBoundary is the per-subscriber high-water byte count; past
	// it, the session's oldest queued messages are dropped.
	BackpressureBoundary int

	// FlushInterval paces the session-drain ticker.
	FlushInterval time.Duration

	MaxFrameSize uint32
	Logger       types.Logger
	Registerer   prometheus.Registerer
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		SessionBufferSize:    DefaultSessionBufferSize,
		BackpressureBoundary: DefaultBackpressureBoundary,
		FlushInterval:        DefaultFlushInterval,
		Logger:               definition.NewDefaultLogger(),
	}
}

func WithAuthenticator(a core.Authenticator) Option {
	return func(o *Options) { o.Authenticator = a }
}

func WithMaxConnections(n int) Option { return func(o *Options) { o.MaxConnections = n } }

func WithSessionBufferSize(n int) Option {
	return func(o *Options) { o.SessionBufferSize = n }
}

func WithBackpressureBoundary(n int) Option {
	return func(o *Options) { o.BackpressureBoundary = n }
}

func WithFlushInterval(d time.Duration) Option {
	return func(o *Options) { o.FlushInterval = d }
}

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
