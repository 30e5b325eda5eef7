// File: stream/local.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"net"
	"time"

	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/reactor"
)

// SocketName maps an endpoint path to the Unix socket address. Abstract
// names get a leading zero byte and never appear in the filesystem.
func SocketName(path string, abstract bool) string {
	if abstract {
		return "\x00" + path
	}
	return path
}

type localClient struct {
	pipe
	path     string
	abstract bool
}

// NewLocalClient returns an unconnected Unix-domain stream. Init connects
// directly; there is no resolution and no deadline.
func NewLocalClient(loop *reactor.Loop, path string, abstract bool) *Stream {
	return newStream(loop, &localClient{path: path, abstract: abstract})
}

func (c *localClient) open(time.Duration) error {
	conn, err := net.Dial("unix", SocketName(c.path, c.abstract))
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *localClient) endPointURL() string { return c.path }

func (c *localClient) remoteHost() string { return "" }

type localServerConn struct {
	pipe
	path string
}

// NewLocalServerStream wraps an accepted Unix-domain connection. Its identity
// is the listener's configured path.
func NewLocalServerStream(loop *reactor.Loop, conn net.Conn, path string) *Stream {
	c := &localServerConn{path: path}
	c.attach(conn)
	return newStream(loop, c)
}

func (c *localServerConn) open(time.Duration) error {
	if c.ready() {
		return nil
	}
	return api.ErrTransportClosed
}

func (c *localServerConn) endPointURL() string { return c.path }

func (c *localServerConn) remoteHost() string { return "" }
