// Package wire implements the three length-delimited framings used by this
// module: request/reply, pub/sub and the one-shot auth handshake. Each
// codec is a stateless encode/decode pair over a buffered io.Reader /
// io.Writer, mirroring the teacher's "framed transport per connection"
// style without needing a stateful Framed/Decoder type of its own.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jabolina/go-msg/pkg/msg/types"
)

// DefaultMaxFrameSize is the hard per-frame payload ceiling applied by every
// codec in this package unless a caller configures a different one.
const DefaultMaxFrameSize = 16 * 1024 * 1024

var (
	// ErrTruncated is returned when the underlying reader reaches EOF
	// mid-frame.
	ErrTruncated = errors.New("wire: truncated frame")

	// ErrInvalidTag is returned by the pubsub codec on an unrecognized
	// frame tag.
	ErrInvalidTag = errors.New("wire: invalid frame tag")
)

// ErrLengthExceeded is returned when a frame declares a length greater than
// the codec's configured maximum.
type ErrLengthExceeded struct {
	Max      uint32
	Declared uint32
}

func (e *ErrLengthExceeded) Error() string {
	return fmt.Sprintf("wire: frame length %d exceeds max %d", e.Declared, e.Max)
}

// ReqRepCodec encodes and decodes the request/reply wire format: a 4-byte
// big-endian id, a 4-byte big-endian payload length, then the payload.
type ReqRepCodec struct {
	MaxFrameSize uint32
}

// NewReqRepCodec returns a codec with DefaultMaxFrameSize applied.
func NewReqRepCodec() *ReqRepCodec {
	return &ReqRepCodec{MaxFrameSize: DefaultMaxFrameSize}
}

// Decode blocks on r until one full message has been read, or returns an
// error (io.EOF, ErrTruncated or *ErrLengthExceeded) otherwise.
func (c *ReqRepCodec) Decode(r io.Reader) (types.ReqRepMessage, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return types.ReqRepMessage{}, wrapReadErr(err)
	}

	id := binary.BigEndian.Uint32(header[0:4])
	length := binary.BigEndian.Uint32(header[4:8])
	max := c.max()
	if length > max {
		return types.ReqRepMessage{}, &ErrLengthExceeded{Max: max, Declared: length}
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return types.ReqRepMessage{}, wrapReadErr(err)
		}
	}

	return types.ReqRepMessage{ID: id, Payload: payload}, nil
}

// Encode writes m to w as a single contiguous frame.
func (c *ReqRepCodec) Encode(w io.Writer, m types.ReqRepMessage) error {
	if uint32(len(m.Payload)) > c.max() {
		return &ErrLengthExceeded{Max: c.max(), Declared: uint32(len(m.Payload))}
	}
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], m.ID)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(m.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (c *ReqRepCodec) max() uint32 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
