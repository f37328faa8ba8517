// Command msg-pubsub runs one publisher and two subscribers on the same
// topic; one subscriber unsubscribes after receiving "Message 10" (the 11th
// message, as numbering starts at 0). Grounded on
// original_source/msg/examples/pubsub.rs.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-msg/pkg/msg/pub"
	"github.com/jabolina/go-msg/pkg/msg/sub"
	"github.com/jabolina/go-msg/pkg/msg/transport"
)

var (
	topic        = kingpin.Flag("topic", "topic both subscribers listen on").Default("HELLO_TOPIC").String()
	messageCount = kingpin.Flag("messages", "number of messages to publish").Default("20").Int()
)

func runSubscriber(name string, addr string, idleTimeout time.Duration, unsubscribeAfter int) {
	socket := sub.NewSubSocket(transport.NewTCP(""))
	socket.Start()
	defer socket.Close()

	ctx := context.Background()
	if err := socket.Connect(ctx, addr); err != nil {
		color.Red("[%s] connect failed: %v", name, err)
		return
	}
	if err := socket.Subscribe(ctx, *topic); err != nil {
		color.Red("[%s] subscribe failed: %v", name, err)
		return
	}
	color.Cyan("[%s] connected and subscribed to %s", name, *topic)

	received := 0
	for {
		recvCtx, cancel := context.WithTimeout(context.Background(), idleTimeout)
		msg, err := socket.Next(recvCtx)
		cancel()
		if err != nil {
			color.Yellow("[%s] timed out waiting for a message, stopping", name)
			return
		}
		received++
		color.Green("[%s] received: %s", name, msg.Payload)
		if unsubscribeAfter > 0 && strings.Contains(string(msg.Payload), fmt.Sprintf("%d", unsubscribeAfter)) {
			color.Yellow("[%s] unsubscribing...", name)
			_ = socket.Unsubscribe(context.Background(), *topic)
		}
	}
}

func main() {
	kingpin.Parse()

	pubSocket := pub.NewPubSocket(transport.NewTCP(""))
	if err := pubSocket.Bind("127.0.0.1:0"); err != nil {
		color.Red("failed to bind pub socket: %v", err)
		return
	}
	defer pubSocket.Close()
	addr := pubSocket.LocalAddr()
	color.Cyan("publisher listening on %s", addr)

	go runSubscriber("sub1", addr, 2*time.Second, 10)
	go runSubscriber("sub2", addr, 1*time.Second, 0)

	time.Sleep(200 * time.Millisecond)
	for i := 0; i < *messageCount; i++ {
		time.Sleep(300 * time.Millisecond)
		payload := []byte(fmt.Sprintf("Message %d", i))
		if err := pubSocket.Publish(*topic, payload); err != nil {
			color.Red("publish failed: %v", err)
			return
		}
	}

	time.Sleep(2 * time.Second)
}
