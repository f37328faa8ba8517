package rep

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msgFixture(id uint32, payload string) types.ReqRepMessage {
	return types.ReqRepMessage{ID: id, Payload: []byte(payload)}
}

func bindLoopback(t *testing.T) *RepSocket {
	t.Helper()
	socket := NewRepSocket(transport.NewTCP(""))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	t.Cleanup(func() { socket.Close() })
	return socket
}

func TestRepSocket_NextBlocksUntilRequestArrives(t *testing.T) {
	socket := bindLoopback(t)

	conn, err := (&transport.TCP{}).Connect(context.Background(), socket.LocalAddr(), transport.DefaultConnectOptions())
	require.NoError(t, err)
	defer conn.Close()

	codec := socket.opts.codec()
	require.NoError(t, codec.Encode(conn, msgFixture(1, "hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := socket.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), req.Msg())
}

func TestRepSocket_RespondWritesMatchingID(t *testing.T) {
	socket := bindLoopback(t)

	conn, err := (&transport.TCP{}).Connect(context.Background(), socket.LocalAddr(), transport.DefaultConnectOptions())
	require.NoError(t, err)
	defer conn.Close()

	codec := socket.opts.codec()
	require.NoError(t, codec.Encode(conn, msgFixture(7, "ping")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := socket.Next(ctx)
	require.NoError(t, err)
	req.Respond([]byte("pong"))

	reply, err := codec.Decode(conn)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), reply.ID)
	assert.Equal(t, []byte("pong"), reply.Payload)
}

func TestRepSocket_RespondIsIdempotent(t *testing.T) {
	replyCh := make(chan []byte, 2)
	req := &Request{source: "x", msg: []byte("hi"), reply: replyCh}
	req.Respond([]byte("one"))
	req.Respond([]byte("two"))
	assert.Equal(t, []byte("one"), <-replyCh)
	assert.Empty(t, replyCh)
}

func TestRepSocket_OutOfOrderResponsesStillCorrelateByID(t *testing.T) {
	socket := bindLoopback(t)

	conn, err := (&transport.TCP{}).Connect(context.Background(), socket.LocalAddr(), transport.DefaultConnectOptions())
	require.NoError(t, err)
	defer conn.Close()

	codec := socket.opts.codec()
	require.NoError(t, codec.Encode(conn, msgFixture(1, "first")))
	require.NoError(t, codec.Encode(conn, msgFixture(2, "second")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := socket.Next(ctx)
	require.NoError(t, err)
	second, err := socket.Next(ctx)
	require.NoError(t, err)

	// Respond in reverse arrival order: id 2 completes before id 1. Spec
	// property 2 says correlation is by id, not by response order.
	second.Respond([]byte("second-ack"))
	first.Respond([]byte("first-ack"))

	byID := make(map[uint32][]byte, 2)
	for i := 0; i < 2; i++ {
		reply, err := codec.Decode(conn)
		require.NoError(t, err)
		byID[reply.ID] = reply.Payload
	}
	assert.Equal(t, []byte("first-ack"), byID[1])
	assert.Equal(t, []byte("second-ack"), byID[2])
}

func TestRepSocket_SlowConsumerBackpressureLosesNothing(t *testing.T) {
	socket := NewRepSocket(transport.NewTCP(""), WithRequestBufferSize(1))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	conn, err := (&transport.TCP{}).Connect(context.Background(), socket.LocalAddr(), transport.DefaultConnectOptions())
	require.NoError(t, err)
	defer conn.Close()

	codec := socket.opts.codec()
	const n = 5
	go func() {
		for i := uint32(0); i < n; i++ {
			_ = codec.Encode(conn, msgFixture(i, "msg"))
		}
	}()

	// Drain slowly, well behind the writer, proving the full request buffer
	// blocks the peer's ingress instead of dropping anything (spec property
	// 5): all n requests must still show up.
	for i := uint32(0); i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		req, err := socket.Next(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, []byte("msg"), req.Msg())
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRepSocket_AuthenticatorRejectsConnection(t *testing.T) {
	socket := NewRepSocket(transport.NewTCP(""), WithAuthenticator(core.AuthenticatorFunc(func(id []byte) bool { return false })))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	conn, err := (&transport.TCP{}).Connect(context.Background(), socket.LocalAddr(), transport.DefaultConnectOptions())
	require.NoError(t, err)
	defer conn.Close()

	token := core.NewToken([]byte("nope"))
	defer token.Destroy()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	err = core.HandshakeClient(br, bw, token, wire.NewAuthCodec())
	assert.ErrorIs(t, err, types.ErrAuthRejected)
}
