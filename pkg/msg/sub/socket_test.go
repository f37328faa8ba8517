package sub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/go-msg/pkg/msg/core"
	"github.com/jabolina/go-msg/pkg/msg/pub"
	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// fastReconnect keeps reconnect-integration tests quick without waiting out
// the default base backoff.
func fastReconnect() core.ReconnectPolicy {
	return core.ReconnectPolicy{Base: 20 * time.Millisecond, Cap: 50 * time.Millisecond, Jitter: 0}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startFakePublisher accepts one connection, replays any subscribe frame it
// receives back as a single matching data frame, letting sub tests run
// without standing up a full pub.PubSocket.
func startFakePublisher(t *testing.T) (addr string, stop func()) {
	t.Helper()
	server := transport.NewTCP("")
	require.NoError(t, server.Bind("127.0.0.1:0"))
	local, err := server.LocalAddr()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		conn, _, err := server.Accept(ctx)
		if err != nil {
			return
		}
		defer conn.Close()
		codec := wire.NewPubSubCodec()
		frame, err := codec.Decode(conn)
		if err != nil {
			return
		}
		_ = codec.Encode(conn, wire.PubSubFrame{Tag: wire.TagData, Topic: frame.Topic, Payload: []byte("hello")})
		<-ctx.Done()
	}()

	return local, func() {
		cancel()
		server.Close()
	}
}

func TestSubSocket_ReceivesMessageAfterSubscribe(t *testing.T) {
	addr, stop := startFakePublisher(t)
	defer stop()

	socket := NewSubSocket(transport.NewTCP(""))
	socket.Start()
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, socket.Connect(ctx, addr))
	require.NoError(t, socket.Subscribe(ctx, "orders"))

	msg, err := socket.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, []byte("hello"), msg.Payload)
}

func TestSubSocket_NextRespectsContextCancellation(t *testing.T) {
	socket := NewSubSocket(transport.NewTCP(""))
	socket.Start()
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := socket.Next(ctx)
	assert.Error(t, err)
}

func TestSubSocket_AuthRejectionStopsReconnectingInsteadOfBusyLooping(t *testing.T) {
	publisher := pub.NewPubSocket(transport.NewTCP(""), pub.WithAuthenticator(core.AuthenticatorFunc(func(id []byte) bool { return false })))
	require.NoError(t, publisher.Bind("127.0.0.1:0"))
	defer publisher.Close()

	socket := NewSubSocket(transport.NewTCP(""), WithAuthToken([]byte("nope")), WithReconnectPolicy(fastReconnect()))
	socket.Start()
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, socket.Connect(ctx, publisher.LocalAddr()))

	// Give the peer goroutine time for its one rejected attempt and the
	// resulting peerFailed report to reach the driver.
	require.Eventually(t, func() bool {
		_, stillTracked := socket.driver.peers[publisher.LocalAddr()]
		return !stillTracked
	}, time.Second, 10*time.Millisecond, "driver must drop a permanently-rejected peer instead of retrying it forever")
}

func TestSubSocket_ReconnectsAfterPublisherRestart(t *testing.T) {
	publisher := pub.NewPubSocket(transport.NewTCP(""))
	require.NoError(t, publisher.Bind("127.0.0.1:0"))
	addr := publisher.LocalAddr()

	socket := NewSubSocket(transport.NewTCP(""), WithReconnectPolicy(fastReconnect()))
	socket.Start()
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, socket.Connect(ctx, addr))
	require.NoError(t, socket.Subscribe(ctx, "orders"))

	// Give the handshake and subscription frame time to reach the backend
	// before publishing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, publisher.Publish("orders", []byte("before-restart")))
	msg, err := socket.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("before-restart"), msg.Payload)

	require.NoError(t, publisher.Close())

	newPublisher := pub.NewPubSocket(transport.NewTCP(""))
	require.NoError(t, newPublisher.Bind(addr))
	defer newPublisher.Close()

	// Wait out the client's reconnect loop, then give the driver time to
	// resend the authoritative subscription set to the fresh peer.
	time.Sleep(300 * time.Millisecond)
	require.Eventually(t, func() bool {
		if err := newPublisher.Publish("orders", []byte("after-restart")); err != nil {
			return false
		}
		select {
		case msg := <-socket.driver.ingress:
			return string(msg.Payload) == "after-restart"
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 200*time.Millisecond, "subscriber must resume receiving after the publisher restarts on the same address")
}
