// Package types holds the shared data model and error taxonomy used across
// the wire, transport and socket packages.
package types

import "errors"

var (
	// ErrSocketClosed is returned to a caller when the frontend or backend
	// side of a socket's command/event channel has been closed.
	ErrSocketClosed = errors.New("msg: socket closed")

	// ErrTimeout is returned by ReqSocket.Request when the configured
	// timeout elapses before a reply arrives.
	ErrTimeout = errors.New("msg: request timed out")

	// ErrConnectionLost is returned to ReqSocket.Request callers with
	// outstanding requests when the REQ connection drops, and to requests
	// issued while disconnected when blocking on reconnect is off. SUB
	// operations never return it: a SUB peer reconnects in the background.
	ErrConnectionLost = errors.New("msg: connection lost")

	// ErrAuthRejected is returned on the client side when the server's
	// Authenticator rejects the presented identity token.
	ErrAuthRejected = errors.New("msg: authentication rejected")

	// ErrNotAdvertisable is returned by the TCP transport when asked to
	// resolve a local address that cannot be advertised to peers (e.g. a
	// wildcard bind with no explicit advertise address).
	ErrNotAdvertisable = errors.New("msg: local address is not advertisable")
)

// TransportError wraps an opaque error returned by a ServerTransport or
// ClientTransport implementation, per the spec's error taxonomy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "msg: transport error during " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err, tagged with the operation that failed.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
