package pub

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func rawSubscriber(t *testing.T, addr, topic string) (conn transport.Io, br *bufio.Reader, close func()) {
	t.Helper()
	c, err := (&transport.TCP{}).Connect(context.Background(), addr, transport.DefaultConnectOptions())
	require.NoError(t, err)

	codec := wire.NewPubSubCodec()
	require.NoError(t, codec.EncodeSubscribe(c, topic))

	return c, bufio.NewReader(c), func() { c.Close() }
}

// assertNothingArrives confirms no further frame shows up on conn/br within a
// short deadline, using a read deadline instead of a racing goroutine so the
// test never leaves a blocked reader behind for goleak to trip over.
func assertNothingArrives(t *testing.T, conn transport.Io, br *bufio.Reader, codec *wire.PubSubCodec) {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(150*time.Millisecond)))
	_, err := codec.Decode(br)
	require.Error(t, err, "unexpected frame arrived for a topic this subscriber should not receive")
	require.NoError(t, conn.SetDeadline(time.Time{}))
}

func TestPubSocket_DeliversOnlyToSubscribedTopic(t *testing.T) {
	socket := NewPubSocket(transport.NewTCP(""))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	_, br, closeConn := rawSubscriber(t, socket.LocalAddr(), "orders")
	defer closeConn()

	// Give the backend time to register the session and its subscription.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, socket.Publish("shipments", []byte("noise")))
	require.NoError(t, socket.Publish("orders", []byte("created")))

	codec := wire.NewPubSubCodec()
	frame, err := codec.Decode(br)
	require.NoError(t, err)
	assert.Equal(t, "orders", frame.Topic)
	assert.Equal(t, []byte("created"), frame.Payload)
}

func TestPubSocket_FanOutRespectsPerSubscriberSubscriptions(t *testing.T) {
	socket := NewPubSocket(transport.NewTCP(""))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	ordersConn, ordersBr, closeOrders := rawSubscriber(t, socket.LocalAddr(), "orders")
	defer closeOrders()
	shipmentsConn, shipmentsBr, closeShipments := rawSubscriber(t, socket.LocalAddr(), "shipments")
	defer closeShipments()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, socket.Publish("orders", []byte("order-created")))
	require.NoError(t, socket.Publish("shipments", []byte("shipment-created")))

	codec := wire.NewPubSubCodec()

	ordersFrame, err := codec.Decode(ordersBr)
	require.NoError(t, err)
	assert.Equal(t, "orders", ordersFrame.Topic)
	assert.Equal(t, []byte("order-created"), ordersFrame.Payload)

	shipmentsFrame, err := codec.Decode(shipmentsBr)
	require.NoError(t, err)
	assert.Equal(t, "shipments", shipmentsFrame.Topic)
	assert.Equal(t, []byte("shipment-created"), shipmentsFrame.Payload)

	// Neither subscriber has anything further queued for the other's topic.
	assertNothingArrives(t, ordersConn, ordersBr, codec)
	assertNothingArrives(t, shipmentsConn, shipmentsBr, codec)
}

func TestPubSocket_UnsubscribeStopsFurtherDelivery(t *testing.T) {
	socket := NewPubSocket(transport.NewTCP(""))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	conn, br, closeConn := rawSubscriber(t, socket.LocalAddr(), "orders")
	defer closeConn()
	time.Sleep(100 * time.Millisecond)

	codec := wire.NewPubSubCodec()
	require.NoError(t, socket.Publish("orders", []byte("first")))
	frame, err := codec.Decode(br)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), frame.Payload)

	require.NoError(t, codec.EncodeUnsubscribe(conn, "orders"))
	time.Sleep(100 * time.Millisecond) // let the backend process the control frame

	require.NoError(t, socket.Publish("orders", []byte("second")))
	assertNothingArrives(t, conn, br, codec)
}

func TestPubSocket_SlowSubscriberDropsOldestWithoutBlockingPublish(t *testing.T) {
	socket := NewPubSocket(transport.NewTCP(""), WithSessionBufferSize(4), WithBackpressureBoundary(1<<20))
	require.NoError(t, socket.Bind("127.0.0.1:0"))
	defer socket.Close()

	conn, br, closeConn := rawSubscriber(t, socket.LocalAddr(), "flood")
	defer closeConn()
	time.Sleep(100 * time.Millisecond)

	const published = 500
	start := time.Now()
	for i := 0; i < published; i++ {
		require.NoError(t, socket.Publish("flood", []byte{byte(i), byte(i >> 8)}))
	}
	assert.Less(t, time.Since(start), time.Second, "Publish must never block on a slow subscriber")

	// The subscriber starts reading only now, long after the ring (capacity
	// 4) could possibly have overflowed many times over; keep decoding until
	// a read-deadline timeout proves nothing further is coming.
	codec := wire.NewPubSubCodec()
	delivered := 0
	for {
		require.NoError(t, conn.SetDeadline(time.Now().Add(200*time.Millisecond)))
		_, err := codec.Decode(br)
		if err != nil {
			break
		}
		delivered++
	}
	require.NoError(t, conn.SetDeadline(time.Time{}))

	assert.Greater(t, delivered, 0, "at least the most recent messages should have been delivered")
	assert.Less(t, delivered, published, "the drop-oldest ring must have discarded some of the flood")
}

func TestSession_EnqueueDropsOldestOnOverflow(t *testing.T) {
	s := newSession(context.Background(), "peer", nil, nil, nil, wire.NewPubSubCodec(), make(chan controlFrame, 1), nil, 2, 1<<20)
	s.enqueue([]byte("a"))
	s.enqueue([]byte("b"))
	s.enqueue([]byte("c"))

	frames := s.drain()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("b"), frames[0])
	assert.Equal(t, []byte("c"), frames[1])
	assert.EqualValues(t, 1, s.Dropped())
}
