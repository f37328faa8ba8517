// Package rep implements the REP (reply) socket: frontend, backend accept
// loop, and per-connection peer session.
package rep

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/definition"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// DefaultRequestBufferSize is the capacity of the channel connecting the
// backend to RepSocket.Next, matching the spec's default MPSC capacity.
const DefaultRequestBufferSize = 1024

// Options configures a RepSocket.
type Options struct {
	// MaxConnections caps concurrently admitted peers; 0 means unbounded.
	MaxConnections int

	// Authenticator, if set, gates every inbound connection.
	Authenticator core.Authenticator

	// RequestBufferSize is the capacity of the channel RepSocket.Next reads
	// from.
	RequestBufferSize int

	// MaxFrameSize overrides wire.DefaultMaxFrameSize when non-zero.
	MaxFrameSize uint32

	Logger     types.Logger
	Registerer prometheus.Registerer
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions mirrors the teacher's RepOptions defaults.
func DefaultOptions() Options {
	return Options{
		RequestBufferSize: DefaultRequestBufferSize,
		Logger:            definition.NewDefaultLogger(),
	}
}

func WithAuthenticator(a core.Authenticator) Option {
	return func(o *Options) { o.Authenticator = a }
}

func WithMaxConnections(n int) Option {
	return func(o *Options) { o.MaxConnections = n }
}

func WithRequestBufferSize(n int) Option {
	return func(o *Options) { o.RequestBufferSize = n }
}

func WithMaxFrameSize(n uint32) Option {
	return func(o *Options) { o.MaxFrameSize = n }
}

func WithLogger(l types.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) { o.Registerer = r }
}

func (o Options) codec() *wire.ReqRepCodec {
	c := wire.NewReqRepCodec()
	if o.MaxFrameSize > 0 {
		c.MaxFrameSize = o.MaxFrameSize
	}
	return c
}
