// Package transport defines the byte-stream transport capability the
// sockets are built against (ServerTransport/ClientTransport, spec §6) and
// ships one concrete implementation over net.TCPConn.
package transport

import (
	"context"
	"io"
	"time"
)

// Io is the minimal byte-stream capability a connection must provide.
type Io interface {
	io.Reader
	io.Writer
	io.Closer
	SetDeadline(t time.Time) error
}

// ServerTransport is bound once and yields inbound connections.
type ServerTransport interface {
	// Bind starts listening on addr.
	Bind(addr string) error

	// LocalAddr returns the address the transport is listening on, resolved
	// to something advertisable to peers.
	LocalAddr() (string, error)

	// Accept blocks until a new connection arrives, the context is
	// canceled, or an unrecoverable error occurs.
	Accept(ctx context.Context) (Io, string, error)

	// Close stops accepting and releases the listening socket.
	Close() error
}

// ConnectOptions configures a ClientTransport.Connect call.
type ConnectOptions struct {
	// KeepAlive, when non-zero, enables TCP keepalive with this period.
	KeepAlive time.Duration

	// BlockingConnect, when true, signals that the caller wants Connect to
	// only return once a full connection (and, at a higher layer, the auth
	// handshake) has succeeded.
	BlockingConnect bool

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
}

// DefaultConnectOptions mirrors the defaults a caller gets from a
// zero-valued ConnectOptions plus sensible non-zero timeouts.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		KeepAlive:   30 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// ClientTransport dials out to a single peer.
type ClientTransport interface {
	Connect(ctx context.Context, addr string, opts ConnectOptions) (Io, error)
}
