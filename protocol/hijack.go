// File: protocol/hijack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var errAlreadyHijacked = errors.New("protocol: connection already hijacked")

// hijackWriter is the http.ResponseWriter handed to websocket.Upgrader when
// the request was read directly from a raw connection. Upgrade hijacks it;
// rejections are written through it as a plain HTTP/1.1 response.
type hijackWriter struct {
	conn        net.Conn
	brw         *bufio.ReadWriter
	header      http.Header
	wroteHeader bool
	hijacked    bool
}

func newHijackWriter(conn net.Conn, br *bufio.Reader) *hijackWriter {
	return &hijackWriter{
		conn:   conn,
		brw:    bufio.NewReadWriter(br, bufio.NewWriter(conn)),
		header: make(http.Header),
	}
}

func (w *hijackWriter) Header() http.Header {
	return w.header
}

func (w *hijackWriter) WriteHeader(code int) {
	if w.wroteHeader || w.hijacked {
		return
	}
	w.wroteHeader = true
	fmt.Fprintf(w.brw, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	w.header.Set("Connection", "close")
	w.header.Write(w.brw)
	w.brw.WriteString("\r\n")
	w.brw.Flush()
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	if w.hijacked {
		return 0, errAlreadyHijacked
	}
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.brw.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.brw.Flush()
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.hijacked {
		return nil, nil, errAlreadyHijacked
	}
	w.hijacked = true
	return w.conn, w.brw, nil
}
