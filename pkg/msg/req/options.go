// Package req implements the REQ (request) socket: frontend, single
// driver-loop goroutine owning the pending-request table and reconnect
// state.
package req

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/definition"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// DefaultCommandBufferSize is the capacity of the channel carrying Request
// calls into the driver loop.
const DefaultCommandBufferSize = 1024

// DefaultTimeout is applied to a Request call when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures a ReqSocket.
type Options struct {
	// Timeout bounds how long Request waits for a reply once its frame has
	// been written. A Request queued while disconnected is not timed until
	// the next successful connect writes it; until then only the caller's
	// context bounds the wait.
	Timeout time.Duration

	// Reconnect configures the exponential backoff used while reconnecting.
	Reconnect core.ReconnectPolicy

	// BlockOnReconnect, when true (the default), makes Request calls issued
	// while disconnected queue until the next successful connect. When
	// false, they fail immediately with types.ErrConnectionLost.
	BlockOnReconnect bool

	// AuthToken, if non-empty, is presented during the handshake on every
	// (re)connect.
	AuthToken []byte

	// BlockingConnect, when true, makes Connect return only once the
	// handshake has succeeded.
	BlockingConnect bool

	CommandBufferSize int
	MaxFrameSize      uint32
	Logger            types.Logger
	Registerer        prometheus.Registerer
	ConnectOptions    transport.ConnectOptions
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Timeout:           DefaultTimeout,
		Reconnect:         core.DefaultReconnectPolicy(),
		BlockOnReconnect:  true,
		CommandBufferSize: DefaultCommandBufferSize,
		Logger:            definition.NewDefaultLogger(),
		ConnectOptions:    transport.DefaultConnectOptions(),
	}
}

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

func WithReconnectPolicy(p core.ReconnectPolicy) Option {
	return func(o *Options) { o.Reconnect = p }
}

func WithBlockOnReconnect(b bool) Option { return func(o *Options) { o.BlockOnReconnect = b } }

func WithAuthToken(token []byte) Option { return func(o *Options) { o.AuthToken = token } }

func WithBlockingConnect(b bool) Option { return func(o *Options) { o.BlockingConnect = b } }

func WithMaxFrameSize(n uint32) Option { return func(o *Options) { o.MaxFrameSize = n } }

func WithLogger(l types.Logger) Option { return func(o *Options) { o.Logger = l } }

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
