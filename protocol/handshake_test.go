package protocol_test

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/momentics/hioload-stream/protocol"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestUpgradeAndHandshake(t *testing.T) {
	ln := listen(t)

	type result struct {
		ws  *websocket.Conn
		err error
	}
	srvCh := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			srvCh <- result{err: err}
			return
		}
		ws, err := protocol.Upgrade(conn, time.Second)
		srvCh <- result{ws, err}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	conn, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client, err := protocol.Handshake(conn, host, port, "/data")
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	srv := <-srvCh
	if srv.err != nil {
		t.Fatalf("Upgrade: %v", srv.err)
	}

	if err := client.WriteMessage(websocket.BinaryMessage, []byte("ping!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	mt, msg, err := srv.ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage || string(msg) != "ping!" {
		t.Errorf("got type %d payload %q", mt, msg)
	}

	// server starts the close handshake; the client answers while reading
	closed := make(chan error, 1)
	go func() { closed <- protocol.CloseHandshake(srv.ws, time.Second) }()
	if _, _, err := client.ReadMessage(); !protocol.IsClosure(err) {
		t.Errorf("client read after close: %v", err)
	}
	if err := <-closed; err != nil {
		t.Errorf("CloseHandshake: %v", err)
	}
	client.Close()
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	ln := listen(t)
	errCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		defer conn.Close()
		_, err = protocol.Upgrade(conn, time.Second)
		errCh <- err
	}()

	conn, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: example\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if err := <-errCh; err == nil {
		t.Error("Upgrade accepted a plain HTTP request")
	}
}

func TestHandshakeFailsOnNonWebsocketPeer(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		if _, err := http.ReadRequest(br); err != nil {
			return
		}
		conn.Write([]byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"))
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	conn, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_, err = protocol.Handshake(conn, host, port, "")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 handshake failure, got %v", err)
	}
}
