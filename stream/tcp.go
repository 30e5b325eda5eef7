// File: stream/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"net"
	"strings"
	"time"

	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/reactor"
)

type tcpClient struct {
	pipe
	host, port string
	opts       connectOptions
}

// NewTCPClient returns an unconnected TCP stream. Init resolves host and
// port, then connects under the connect deadline.
func NewTCPClient(loop *reactor.Loop, host, port string, opts ...Option) *Stream {
	return newStream(loop, &tcpClient{host: host, port: port, opts: newConnectOptions(opts)})
}

func (c *tcpClient) open(timeout time.Duration) error {
	conn, err := connect(c.opts, c.host, c.port, timeout)
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *tcpClient) endPointURL() string { return c.host + ":" + c.port }

func (c *tcpClient) remoteHost() string { return c.host }

type tcpServerConn struct {
	pipe
	endpoint, host string
}

// NewTCPServerStream wraps an accepted TCP connection. The stream is ready at
// once; Init is a no-op.
func NewTCPServerStream(loop *reactor.Loop, conn net.Conn) *Stream {
	endpoint, host := peerIdentity(conn)
	c := &tcpServerConn{endpoint: endpoint, host: host}
	c.attach(conn)
	return newStream(loop, c)
}

func (c *tcpServerConn) open(time.Duration) error {
	if c.ready() {
		return nil
	}
	return api.ErrTransportClosed
}

func (c *tcpServerConn) endPointURL() string { return c.endpoint }

func (c *tcpServerConn) remoteHost() string { return c.host }

// peerIdentity derives the server-side endpoint identity from the peer
// address: "192.168.1.7:4000" becomes "192_168_1_7_4000".
func peerIdentity(conn net.Conn) (endpoint, host string) {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "", ""
	}
	h, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), addr.String()
	}
	return NormalizeEndpoint(h, p), h
}

// NormalizeEndpoint renders an address and port as an identifier-safe
// endpoint string.
func NormalizeEndpoint(host, port string) string {
	return strings.ReplaceAll(host, ".", "_") + "_" + port
}
