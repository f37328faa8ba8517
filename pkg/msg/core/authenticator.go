package core

import (
	"bufio"

	"github.com/awnumar/memguard"

	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// Authenticator is a synchronous, side-effect-free predicate invoked
// exactly once per inbound connection on the REP or PUB side, after the
// auth frame is decoded and before any data frame (spec §4.6).
type Authenticator interface {
	Authenticate(id []byte) bool
}

// AuthenticatorFunc adapts a plain function to the Authenticator interface.
type AuthenticatorFunc func(id []byte) bool

func (f AuthenticatorFunc) Authenticate(id []byte) bool { return f(id) }

// Token guards a configured auth token in a memguard.LockedBuffer so it is
// not left sitting in swappable Go-heap memory for the lifetime of a
// connected REQ or SUB socket. This adds no confidentiality to the wire
// (the spec is explicit that auth is identity-only) — it only limits how
// long the secret bytes are exposed in process memory once configured.
type Token struct {
	buf *memguard.LockedBuffer
}

// NewToken copies raw into a locked buffer. The caller should treat raw as
// consumed; call Destroy when the token is no longer needed.
func NewToken(raw []byte) *Token {
	if len(raw) == 0 {
		return nil
	}
	return &Token{buf: memguard.NewBufferFromBytes(raw)}
}

// Bytes returns the guarded token bytes. The returned slice aliases the
// locked buffer's memory and must not be retained past Destroy.
func (t *Token) Bytes() []byte {
	if t == nil || t.buf == nil {
		return nil
	}
	return t.buf.Bytes()
}

// Destroy wipes the token from memory. Safe to call on a nil *Token.
func (t *Token) Destroy() {
	if t == nil || t.buf == nil {
		return
	}
	t.buf.Destroy()
}

// HandshakeServer performs the server-side half of the optional auth
// handshake on a freshly accepted connection. When auth is nil, it
// tolerates a client that skipped authentication by peeking the wire's
// leading tag byte: tags 0x01-0x03 are unambiguous data-codec frames (see
// spec §4.1), so anything else is read and discarded as an auth frame that
// nobody asked for, and acked accepted. br/bw must wrap the same
// connection. peekable selects whether the wire format in play has a
// leading tag byte that makes this peek meaningful (true for pub/sub,
// false for req/rep — see DESIGN.md's Open Question decision).
func HandshakeServer(br *bufio.Reader, bw *bufio.Writer, auth Authenticator, codec *wire.AuthCodec, peekable bool) (bool, error) {
	if auth == nil {
		if !peekable {
			return true, nil
		}
		isData, err := wire.PeekIsDataFrame(br)
		if err != nil {
			return false, err
		}
		if isData {
			return true, nil
		}
		id, err := codec.DecodeID(br)
		if err != nil {
			return false, err
		}
		_ = id
		if err := wire.EncodeAck(bw, true); err != nil {
			return false, err
		}
		return true, bw.Flush()
	}

	id, err := codec.DecodeID(br)
	if err != nil {
		return false, err
	}
	accepted := auth.Authenticate(id)
	if err := wire.EncodeAck(bw, accepted); err != nil {
		return false, err
	}
	if err := bw.Flush(); err != nil {
		return false, err
	}
	return accepted, nil
}

// HandshakeClient performs the client-side half: if token is non-empty it
// is sent and the server's ack is awaited; otherwise nothing is written and
// the data-codec phase begins immediately (spec §4.6).
func HandshakeClient(br *bufio.Reader, bw *bufio.Writer, token *Token, codec *wire.AuthCodec) error {
	raw := token.Bytes()
	if len(raw) == 0 {
		return nil
	}
	if err := codec.EncodeID(bw, raw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	accepted, err := wire.DecodeAck(br)
	if err != nil {
		return err
	}
	if !accepted {
		return types.ErrAuthRejected
	}
	return nil
}
