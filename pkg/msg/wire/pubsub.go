package wire

import (
	"encoding/binary"
	"io"

	"github.com/jabolina/go-msg/pkg/msg/types"
)

// Frame tags for the pub/sub wire format.
const (
	TagData        byte = 0x01
	TagSubscribe   byte = 0x02
	TagUnsubscribe byte = 0x03
)

// PubSubFrame is one decoded pub/sub frame: a control frame carries only a
// Topic (Payload is nil), a data frame carries both.
type PubSubFrame struct {
	Tag     byte
	Topic   string
	Payload []byte
}

// PubSubCodec encodes and decodes the pub/sub wire format described in
// spec §4.1: 1-byte tag, 2-byte topic length, topic bytes, and — for data
// frames only — a 4-byte payload length and payload.
type PubSubCodec struct {
	MaxFrameSize uint32
}

// NewPubSubCodec returns a codec with DefaultMaxFrameSize applied.
func NewPubSubCodec() *PubSubCodec {
	return &PubSubCodec{MaxFrameSize: DefaultMaxFrameSize}
}

func (c *PubSubCodec) max() uint32 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// Decode blocks on r until one full frame has been read.
func (c *PubSubCodec) Decode(r io.Reader) (PubSubFrame, error) {
	var tagAndLen [3]byte
	if _, err := io.ReadFull(r, tagAndLen[:]); err != nil {
		return PubSubFrame{}, wrapReadErr(err)
	}

	tag := tagAndLen[0]
	if tag != TagData && tag != TagSubscribe && tag != TagUnsubscribe {
		return PubSubFrame{}, ErrInvalidTag
	}

	topicLen := binary.BigEndian.Uint16(tagAndLen[1:3])
	if uint32(topicLen) > c.max() {
		return PubSubFrame{}, &ErrLengthExceeded{Max: c.max(), Declared: uint32(topicLen)}
	}
	topic := make([]byte, topicLen)
	if topicLen > 0 {
		if _, err := io.ReadFull(r, topic); err != nil {
			return PubSubFrame{}, wrapReadErr(err)
		}
	}

	frame := PubSubFrame{Tag: tag, Topic: string(topic)}
	if tag != TagData {
		return frame, nil
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return PubSubFrame{}, wrapReadErr(err)
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])
	if payloadLen > c.max() {
		return PubSubFrame{}, &ErrLengthExceeded{Max: c.max(), Declared: payloadLen}
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return PubSubFrame{}, wrapReadErr(err)
		}
	}
	frame.Payload = payload
	return frame, nil
}

// Encode writes frame to w.
func (c *PubSubCodec) Encode(w io.Writer, frame PubSubFrame) error {
	if uint32(len(frame.Topic)) > c.max() {
		return &ErrLengthExceeded{Max: c.max(), Declared: uint32(len(frame.Topic))}
	}
	header := make([]byte, 3, 3+4)
	header[0] = frame.Tag
	binary.BigEndian.PutUint16(header[1:3], uint16(len(frame.Topic)))
	header = append(header, frame.Topic...)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if frame.Tag != TagData {
		return nil
	}
	if uint32(len(frame.Payload)) > c.max() {
		return &ErrLengthExceeded{Max: c.max(), Declared: uint32(len(frame.Payload))}
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame.Payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(frame.Payload) > 0 {
		if _, err := w.Write(frame.Payload); err != nil {
			return err
		}
	}
	return nil
}

// EncodeData is a convenience wrapper building a TagData frame from a
// types.PubSubMessage.
func (c *PubSubCodec) EncodeData(w io.Writer, m types.PubSubMessage) error {
	return c.Encode(w, PubSubFrame{Tag: TagData, Topic: m.Topic, Payload: m.Payload})
}

// EncodeSubscribe writes a subscribe control frame for topic.
func (c *PubSubCodec) EncodeSubscribe(w io.Writer, topic string) error {
	return c.Encode(w, PubSubFrame{Tag: TagSubscribe, Topic: topic})
}

// EncodeUnsubscribe writes an unsubscribe control frame for topic.
func (c *PubSubCodec) EncodeUnsubscribe(w io.Writer, topic string) error {
	return c.Encode(w, PubSubFrame{Tag: TagUnsubscribe, Topic: topic})
}
