// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultHandshakeTimeout bounds the opening handshake.
	DefaultHandshakeTimeout = 5 * time.Second
	// CloseHandshakeTimeout bounds the closing handshake, so closing a dead
	// peer does not hang for the opening timeout.
	CloseHandshakeTimeout = 1 * time.Second

	// BufferSize is the read and write buffer size of a websocket connection.
	// A write up to this size leaves as a single frame.
	BufferSize = 64 * 1024

	ClientAgent = "hioload-stream client"
	ServerAgent = "hioload-stream server"
)

// Upgrade reads the HTTP upgrade request from conn and answers it with
// 101 Switching Protocols. On failure an HTTP error response has been written
// where possible; closing conn is left to the caller.
func Upgrade(conn net.Conn, timeout time.Duration) (*websocket.Conn, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("handshake deadline: %w", err)
		}
	}

	br := bufio.NewReaderSize(conn, BufferSize)
	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, fmt.Errorf("handshake read request: %w", err)
	}

	u := websocket.Upgrader{
		ReadBufferSize:  BufferSize,
		WriteBufferSize: BufferSize,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	rw := newHijackWriter(conn, br)
	ws, err := u.Upgrade(rw, req, http.Header{"Server": {ServerAgent}})
	if err != nil {
		return nil, fmt.Errorf("handshake upgrade: %w", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("handshake deadline: %w", err)
	}
	SetCloseHandler(ws, nil)
	return ws, nil
}

// Handshake performs the client side of the opening handshake on an already
// connected socket. host and port fill the Host header; path is the request
// target and may carry a query. gorilla closes conn when the handshake fails.
func Handshake(conn net.Conn, host, port, path string) (*websocket.Conn, error) {
	if path == "" {
		path = "/"
	}
	target, err := url.Parse("ws://" + net.JoinHostPort(host, port) + path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake target: %w", err)
	}

	d := websocket.Dialer{
		NetDial:         func(string, string) (net.Conn, error) { return conn, nil },
		ReadBufferSize:  BufferSize,
		WriteBufferSize: BufferSize,
	}
	ws, resp, err := d.Dial(target.String(), http.Header{"User-Agent": {ClientAgent}})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("handshake: %w", err)
	}
	SetCloseHandler(ws, nil)
	return ws, nil
}
