// File: stream/websocket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/protocol"
	"github.com/momentics/hioload-stream/reactor"
)

// wsPipe moves stream bytes as binary websocket messages. Reads drain
// message payloads back to back, so message boundaries are invisible to the
// read-ahead buffer.
//
// gorilla allows a single reader. reader is held by whoever reads from ws:
// readAtLeast, or close while it waits for the peer's close frame.
type wsPipe struct {
	ws         *websocket.Conn
	cur        io.Reader
	closed     atomic.Bool
	reader     chan struct{}
	peerClosed chan struct{}
}

func (p *wsPipe) attach(ws *websocket.Conn) {
	peer := make(chan struct{})
	var once sync.Once
	protocol.SetCloseHandler(ws, func() { once.Do(func() { close(peer) }) })

	p.ws = ws
	p.cur = nil
	p.reader = make(chan struct{}, 1)
	p.peerClosed = peer
	p.closed.Store(false)
}

func (p *wsPipe) ready() bool { return p.ws != nil && !p.closed.Load() }

// readAtLeast reports a close frame or a dropped peer as io.EOF.
func (p *wsPipe) readAtLeast(b []byte, min int) (int, error) {
	if p.ws == nil || p.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	p.reader <- struct{}{}
	defer func() { <-p.reader }()

	n := 0
	for n < min {
		if p.cur == nil {
			if p.closed.Load() {
				return n, api.ErrTransportClosed
			}
			_, r, err := p.ws.NextReader()
			if err != nil {
				return n, p.readError(err)
			}
			p.cur = r
		}
		k, err := p.cur.Read(b[n:])
		n += k
		if errors.Is(err, io.EOF) {
			p.cur = nil
			continue
		}
		if err != nil {
			return n, p.readError(err)
		}
	}
	return n, nil
}

func (p *wsPipe) readError(err error) error {
	switch {
	case protocol.IsClosure(err):
		return io.EOF
	case p.closed.Load():
		return api.ErrTransportClosed
	}
	return err
}

// write sends the whole vector as one binary message.
func (p *wsPipe) write(v api.ConstBufferVector) (int, error) {
	if p.ws == nil || p.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	w, err := p.ws.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range v {
		k, err := w.Write(b)
		n += k
		if err != nil {
			w.Close()
			return n, err
		}
	}
	return n, w.Close()
}

// close runs the closing handshake under the short close timeout. A pending
// read keeps the connection and receives the peer's close frame itself; close
// then only waits for it to arrive.
func (p *wsPipe) close() error {
	if p.ws == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.Now().Add(protocol.CloseHandshakeTimeout)
	first, err := protocol.SendClose(p.ws, deadline)
	if err == nil && first {
		err = p.awaitPeer(deadline)
	}
	if cerr := p.ws.Close(); err == nil && cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

func (p *wsPipe) awaitPeer(deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-p.peerClosed:
		return nil
	case p.reader <- struct{}{}:
		defer func() { <-p.reader }()
		select {
		case <-p.peerClosed:
			return nil
		default:
		}
		return protocol.AwaitClose(p.ws, deadline)
	case <-timer.C:
		return os.ErrDeadlineExceeded
	}
}

// handshakeError keeps network classification (timeouts, resets) and files
// everything else under the protocol kind.
func handshakeError(op, endpoint string, err error) error {
	kind := api.KindOf(err)
	if kind == api.KindTransport {
		kind = api.KindProtocol
	}
	return api.NewError(kind, op, endpoint, err)
}

type wsClient struct {
	wsPipe
	host, port, path string
	opts             connectOptions
}

// NewWebsocketClient returns an unconnected websocket stream. Init resolves
// and connects like the TCP client, then performs the opening handshake for
// path under a second deadline.
func NewWebsocketClient(loop *reactor.Loop, host, port, path string, opts ...Option) *Stream {
	return newStream(loop, &wsClient{host: host, port: port, path: path, opts: newConnectOptions(opts)})
}

func (c *wsClient) open(timeout time.Duration) error {
	conn, err := connect(c.opts, c.host, c.port, timeout)
	if err != nil {
		return err
	}

	// The handshake has no cancellation of its own; the timer closes the
	// socket underneath it.
	dt := armDeadline(c.opts.deadline(timeout), func() { conn.Close() })
	ws, err := protocol.Handshake(conn, c.host, c.port, c.path)
	if dt.disarm() {
		if ws != nil {
			ws.Close()
		} else {
			conn.Close()
		}
		return api.NewError(api.KindCanceled, "handshake", c.endPointURL(), ErrDeadline)
	}
	if err != nil {
		return handshakeError("handshake", c.endPointURL(), err)
	}
	c.attach(ws)
	return nil
}

func (c *wsClient) endPointURL() string { return c.host + ":" + c.port + c.path }

func (c *wsClient) remoteHost() string { return c.host }

type wsServerConn struct {
	wsPipe
	conn           net.Conn
	endpoint, host string
	timeout        time.Duration
}

// NewWebsocketServerStream wraps an accepted TCP connection that has not been
// upgraded yet. Init reads the upgrade request and answers it, bounded by
// handshakeTimeout (protocol.DefaultHandshakeTimeout when zero). A failed
// upgrade closes the connection.
func NewWebsocketServerStream(loop *reactor.Loop, conn net.Conn, handshakeTimeout time.Duration) *Stream {
	endpoint, host := peerIdentity(conn)
	if handshakeTimeout <= 0 {
		handshakeTimeout = protocol.DefaultHandshakeTimeout
	}
	return newStream(loop, &wsServerConn{conn: conn, endpoint: endpoint, host: host, timeout: handshakeTimeout})
}

func (c *wsServerConn) open(timeout time.Duration) error {
	if c.conn == nil || c.closed.Load() {
		return api.ErrTransportClosed
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	ws, err := protocol.Upgrade(c.conn, timeout)
	if err != nil {
		c.closed.Store(true)
		c.conn.Close()
		return handshakeError("upgrade", c.endpoint, err)
	}
	c.attach(ws)
	return nil
}

// close drops the raw socket when the upgrade never happened.
func (c *wsServerConn) close() error {
	if c.ws == nil {
		if c.conn == nil || !c.closed.CompareAndSwap(false, true) {
			return nil
		}
		return c.conn.Close()
	}
	return c.wsPipe.close()
}

func (c *wsServerConn) endPointURL() string { return c.endpoint }

func (c *wsServerConn) remoteHost() string { return c.host }
