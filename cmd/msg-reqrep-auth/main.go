// Command msg-reqrep-auth runs a REP socket with an Authenticator and a REQ
// socket presenting a token, then exchanges a single request/reply pair.
// Grounded on original_source/msg/examples/reqrep_auth.rs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-msg/pkg/msg/rep"
	"github.com/jabolina/go-msg/pkg/msg/req"
	"github.com/jabolina/go-msg/pkg/msg/transport"
)

var (
	addr      = kingpin.Flag("addr", "address for the REP socket to bind").Default("127.0.0.1:0").String()
	authToken = kingpin.Flag("token", "auth token presented by the REQ socket").Default("client1").String()
)

type logAuth struct{}

func (logAuth) Authenticate(id []byte) bool {
	fmt.Printf("auth request from: %q\n", id)
	return true
}

func main() {
	kingpin.Parse()

	repSocket := rep.NewRepSocket(transport.NewTCP(""), rep.WithAuthenticator(logAuth{}))
	if err := repSocket.Bind(*addr); err != nil {
		color.Red("failed to bind rep socket: %v", err)
		os.Exit(1)
	}
	defer repSocket.Close()

	go func() {
		ctx := context.Background()
		request, err := repSocket.Next(ctx)
		if err != nil {
			return
		}
		color.Green("message: %q", request.Msg())
		request.Respond([]byte("world"))
	}()

	reqSocket := req.NewReqSocket(transport.NewTCP(""), req.WithAuthToken([]byte(*authToken)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := reqSocket.Connect(ctx, repSocket.LocalAddr()); err != nil {
		color.Red("failed to connect req socket: %v", err)
		os.Exit(1)
	}
	defer reqSocket.Close()

	resp, err := reqSocket.Request(ctx, []byte("hello"))
	if err != nil {
		color.Red("request failed: %v", err)
		os.Exit(1)
	}
	color.Cyan("response: %q", resp)
}
