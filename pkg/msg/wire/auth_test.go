package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCodec_IDRoundTrip(t *testing.T) {
	codec := NewAuthCodec()
	var buf bytes.Buffer

	require.NoError(t, codec.EncodeID(&buf, []byte("client1")))
	id, err := codec.DecodeID(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("client1"), id)
}

func TestAuthCodec_AckRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeAck(&buf, true))
	accepted, err := DecodeAck(&buf)
	require.NoError(t, err)
	assert.True(t, accepted)

	buf.Reset()
	require.NoError(t, EncodeAck(&buf, false))
	accepted, err = DecodeAck(&buf)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestPeekIsDataFrame_DataTag(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{TagData, 0x00, 0x00}))
	isData, err := PeekIsDataFrame(br)
	require.NoError(t, err)
	assert.True(t, isData)

	// Peek must not consume the byte.
	b, _ := br.Peek(1)
	assert.Equal(t, TagData, b[0])
}

func TestPeekIsDataFrame_AuthLengthPrefix(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x07}))
	isData, err := PeekIsDataFrame(br)
	require.NoError(t, err)
	assert.False(t, isData)
}
