package transport

import (
	"context"
	"errors"
	"net"

	"github.com/jabolina/go-msg/pkg/msg/types"
)

// TCP is the default ServerTransport/ClientTransport implementation,
// grounded on the teacher's mcast.NewTCPTransport: it resolves an
// advertisable local address up front and fails fast
// (types.ErrNotAdvertisable) on a wildcard bind with nothing to advertise.
type TCP struct {
	AdvertiseAddr string

	listener net.Listener
	resolved string
}

// NewTCP returns a TCP transport. advertiseAddr, if non-empty, overrides
// the address reported by LocalAddr — needed when Bind is given a wildcard
// address like "0.0.0.0:0".
func NewTCP(advertiseAddr string) *TCP {
	return &TCP{AdvertiseAddr: advertiseAddr}
}

var _ ServerTransport = (*TCP)(nil)
var _ ClientTransport = (*TCP)(nil)

func (t *TCP) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return types.NewTransportError("bind", err)
	}
	t.listener = ln

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return types.NewTransportError("bind", errors.New("listener did not return a TCP address"))
	}

	if t.AdvertiseAddr != "" {
		adv, err := net.ResolveTCPAddr("tcp", t.AdvertiseAddr)
		if err != nil {
			return types.NewTransportError("bind", err)
		}
		t.resolved = (&net.TCPAddr{IP: adv.IP, Port: tcpAddr.Port}).String()
		return nil
	}

	if tcpAddr.IP.IsUnspecified() {
		return types.ErrNotAdvertisable
	}
	t.resolved = tcpAddr.String()
	return nil
}

func (t *TCP) LocalAddr() (string, error) {
	if t.resolved == "" {
		return "", types.ErrNotAdvertisable
	}
	return t.resolved, nil
}

func (t *TCP) Accept(ctx context.Context) (Io, string, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := t.listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, "", types.NewTransportError("accept", r.err)
		}
		return r.conn, r.conn.RemoteAddr().String(), nil
	}
}

func (t *TCP) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (t *TCP) Connect(ctx context.Context, addr string, opts ConnectOptions) (Io, error) {
	var d net.Dialer
	if opts.DialTimeout > 0 {
		d.Timeout = opts.DialTimeout
	}
	if opts.KeepAlive > 0 {
		d.KeepAlive = opts.KeepAlive
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, types.NewTransportError("connect", err)
	}
	return conn, nil
}
