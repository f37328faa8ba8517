package wire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Ack values for the auth handshake.
const (
	AckRejected byte = 0x00
	AckAccepted byte = 0x01
)

// AuthCodec encodes and decodes the single-exchange auth frame described in
// spec §4.1: a 4-byte big-endian id length, the id bytes, then a 1-byte
// ack written by the server.
type AuthCodec struct {
	MaxFrameSize uint32
}

// NewAuthCodec returns a codec with DefaultMaxFrameSize applied.
func NewAuthCodec() *AuthCodec {
	return &AuthCodec{MaxFrameSize: DefaultMaxFrameSize}
}

func (c *AuthCodec) max() uint32 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// DecodeID reads a length-prefixed identity token off r.
func (c *AuthCodec) DecodeID(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, wrapReadErr(err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > c.max() {
		return nil, &ErrLengthExceeded{Max: c.max(), Declared: length}
	}
	id := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, wrapReadErr(err)
		}
	}
	return id, nil
}

// EncodeID writes a length-prefixed identity token to w.
func (c *AuthCodec) EncodeID(w io.Writer, id []byte) error {
	if uint32(len(id)) > c.max() {
		return &ErrLengthExceeded{Max: c.max(), Declared: uint32(len(id))}
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(id)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(id) > 0 {
		if _, err := w.Write(id); err != nil {
			return err
		}
	}
	return nil
}

// DecodeAck reads the 1-byte ack written by the server.
func DecodeAck(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, wrapReadErr(err)
	}
	return b[0] == AckAccepted, nil
}

// EncodeAck writes the 1-byte ack.
func EncodeAck(w io.Writer, accepted bool) error {
	ack := AckRejected
	if accepted {
		ack = AckAccepted
	}
	_, err := w.Write([]byte{ack})
	return err
}

// PeekIsDataFrame reports whether the next byte available on br is one of
// the pub/sub data-codec tags (TagData/TagSubscribe/TagUnsubscribe). Used by
// the server-side auth handshake to tolerate a client that skips
// authentication when no Authenticator is configured (spec §4.6/§9).
func PeekIsDataFrame(br *bufio.Reader) (bool, error) {
	b, err := br.Peek(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case TagData, TagSubscribe, TagUnsubscribe:
		return true, nil
	default:
		return false, nil
	}
}
