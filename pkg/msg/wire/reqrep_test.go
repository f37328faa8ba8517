package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jabolina/go-msg/pkg/msg/types"
)

func TestReqRepCodec_EncodeDecodeRoundTrip(t *testing.T) {
	codec := NewReqRepCodec()
	var buf bytes.Buffer

	in := types.ReqRepMessage{ID: 42, Payload: []byte("hello")}
	require.NoError(t, codec.Encode(&buf, in))

	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReqRepCodec_EmptyPayload(t *testing.T) {
	codec := NewReqRepCodec()
	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, types.ReqRepMessage{ID: 1}))
	out, err := codec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), out.ID)
	assert.Empty(t, out.Payload)
}

func TestReqRepCodec_TruncatedFrame(t *testing.T) {
	codec := NewReqRepCodec()
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, types.ReqRepMessage{ID: 1, Payload: []byte("abcdef")}))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := codec.Decode(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReqRepCodec_CleanEOF(t *testing.T) {
	codec := NewReqRepCodec()
	_, err := codec.Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReqRepCodec_LengthExceeded(t *testing.T) {
	codec := &ReqRepCodec{MaxFrameSize: 4}
	var buf bytes.Buffer
	require.NoError(t, NewReqRepCodec().Encode(&buf, types.ReqRepMessage{ID: 1, Payload: []byte("toolong")}))

	_, err := codec.Decode(&buf)
	var lenErr *ErrLengthExceeded
	assert.ErrorAs(t, err, &lenErr)
}
