// Command msg-echo runs a PING/PONG REQ/REP exchange, deliberately dropping
// one request to exercise REQ's timeout path. Grounded on
// original_source/msg/examples/durable.rs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-msg/pkg/msg/rep"
	"github.com/jabolina/go-msg/pkg/msg/req"
	"github.com/jabolina/go-msg/pkg/msg/transport"
)

// fileConfig optionally overrides the flag defaults below, mirroring the
// katzenpost-style TOML config pattern rather than hand-rolled flag parsing
// for anything beyond simple scalars.
type fileConfig struct {
	Addr       string `toml:"addr"`
	Requests   int    `toml:"requests"`
	DropOnNth  int    `toml:"drop_on_nth"`
	ReqTimeout string `toml:"req_timeout"`
}

var (
	addr       = kingpin.Flag("addr", "address for the REP socket to bind").Default("127.0.0.1:4444").String()
	requests   = kingpin.Flag("requests", "number of PING requests to send").Default("10").Int()
	dropOnNth  = kingpin.Flag("drop-on-nth", "the nth request is silently dropped to trigger a timeout").Default("5").Int()
	reqTimeout = kingpin.Flag("req-timeout", "per-request timeout").Default("4s").Duration()
	configPath = kingpin.Flag("config", "optional TOML file overriding the flags above").String()
)

func loadConfig() error {
	if *configPath == "" {
		return nil
	}
	var fc fileConfig
	if _, err := toml.DecodeFile(*configPath, &fc); err != nil {
		return err
	}
	if fc.Addr != "" {
		*addr = fc.Addr
	}
	if fc.Requests > 0 {
		*requests = fc.Requests
	}
	if fc.DropOnNth > 0 {
		*dropOnNth = fc.DropOnNth
	}
	if fc.ReqTimeout != "" {
		d, err := time.ParseDuration(fc.ReqTimeout)
		if err != nil {
			return err
		}
		*reqTimeout = d
	}
	return nil
}

func startRep() *rep.RepSocket {
	socket := rep.NewRepSocket(transport.NewTCP(""))
	if err := socket.Bind(*addr); err != nil {
		color.Red("failed to bind rep socket: %v", err)
		os.Exit(1)
	}

	go func() {
		n := 0
		for {
			request, err := socket.Next(context.Background())
			if err != nil {
				return
			}
			n++
			if n == *dropOnNth {
				color.Yellow("dropping request %d to trigger a REQ timeout", n)
				continue
			}
			response := fmt.Sprintf("PONG %s", request.Msg())
			request.Respond([]byte(response))
		}
	}()
	return socket
}

func main() {
	kingpin.Parse()
	if err := loadConfig(); err != nil {
		color.Red("failed to load config: %v", err)
		os.Exit(1)
	}

	repSocket := startRep()
	defer repSocket.Close()

	reqSocket := req.NewReqSocket(transport.NewTCP(""), req.WithTimeout(*reqTimeout))
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reqSocket.Connect(connectCtx, repSocket.LocalAddr()); err != nil {
		color.Red("failed to connect req socket: %v", err)
		os.Exit(1)
	}
	defer reqSocket.Close()

	for i := 0; i < *requests; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), *reqTimeout)
		resp, err := reqSocket.Request(ctx, []byte(fmt.Sprintf("PING %d", i)))
		cancel()
		if err != nil {
			color.Red("request %d failed: %v", i, err)
			continue
		}
		color.Green("response: %s", resp)
	}
}
