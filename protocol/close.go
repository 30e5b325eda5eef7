// File: protocol/close.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// SetCloseHandler installs the handler that answers the peer's close frame.
// Unlike gorilla's default it never fails the read that delivered the frame:
// when our own close frame is already on the wire, or the reply cannot be
// written, the peer has ended the session all the same. notify, when not nil,
// runs as the peer's close frame arrives.
func SetCloseHandler(ws *websocket.Conn, notify func()) {
	ws.SetCloseHandler(func(code int, _ string) error {
		if notify != nil {
			notify()
		}
		msg := websocket.FormatCloseMessage(code, "")
		ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(CloseHandshakeTimeout))
		return nil
	})
}

// SendClose writes a close frame without status. It reports false when a
// close frame had already been sent on ws, either as our own close or as the
// answer to the peer's.
func SendClose(ws *websocket.Conn, deadline time.Time) (bool, error) {
	msg := websocket.FormatCloseMessage(websocket.CloseNoStatusReceived, "")
	err := ws.WriteControl(websocket.CloseMessage, msg, deadline)
	if errors.Is(err, websocket.ErrCloseSent) {
		return false, nil
	}
	return err == nil, err
}

// AwaitClose reads until the peer's close frame arrives or deadline passes.
// Data frames that arrive meanwhile are discarded. The caller must be the
// only reader of ws.
func AwaitClose(ws *websocket.Conn, deadline time.Time) error {
	if err := ws.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		_, r, err := ws.NextReader()
		if err != nil {
			if IsClosure(err) || errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		}
		if _, err := io.Copy(io.Discard, r); err != nil && !IsClosure(err) {
			return err
		}
	}
}

// CloseHandshake sends a close frame, waits up to timeout for the peer's
// close frame and then closes the socket. A peer that already initiated the
// close, or that simply hung up, counts as a completed handshake. It must not
// run while another goroutine reads from ws.
func CloseHandshake(ws *websocket.Conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	first, err := SendClose(ws, deadline)
	if err == nil && first {
		err = AwaitClose(ws, deadline)
	}
	if cerr := ws.Close(); err == nil && cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

// IsClosure reports whether err means the peer ended the websocket session,
// either with a close frame or by dropping the connection.
func IsClosure(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
