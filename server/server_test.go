package server_test

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/protocol"
	"github.com/momentics/hioload-stream/reactor"
	"github.com/momentics/hioload-stream/server"
	"github.com/momentics/hioload-stream/stream"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func startLoop(t *testing.T) *reactor.Loop {
	t.Helper()
	l := reactor.New()
	go l.Run()
	t.Cleanup(l.Stop)
	return l
}

func quietLogger() (logrus.FieldLogger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

// echo writes back whatever arrives and closes after echoing "goodbye!".
func echo(s api.Stream) {
	s.AsyncReadSome(func(err error, n int) {
		if err != nil {
			s.AsyncClose(func(error) {})
			return
		}
		msg := append([]byte(nil), s.Data()...)
		s.Consume(n)
		s.AsyncWrite(msg, func(err error, _ int) {
			if err != nil || bytes.Contains(msg, []byte("goodbye!")) {
				s.AsyncClose(func(error) {})
				return
			}
			echo(s)
		})
	})
}

// converse runs the echo scenario from the client side.
func converse(t *testing.T, c *stream.Stream) {
	t.Helper()
	if err := c.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer c.Close()

	for _, msg := range []string{"hello", "goodbye!"} {
		if _, err := c.Write([]byte(msg)); err != nil {
			t.Fatalf("Write %q: %v", msg, err)
		}
		if err := c.Read(len(msg)); err != nil {
			t.Fatalf("Read %q: %v", msg, err)
		}
		if got := string(c.Data()[:len(msg)]); got != msg {
			t.Fatalf("echo = %q, want %q", got, msg)
		}
		c.Consume(len(msg))
	}
	if _, err := c.ReadSome(); !errors.Is(err, api.ErrEndOfStream) {
		t.Errorf("ReadSome after goodbye = %v, want end of stream", err)
	}
}

func tcpPort(t *testing.T, addrs []net.Addr) string {
	t.Helper()
	for _, a := range addrs {
		if ta, ok := a.(*net.TCPAddr); ok && ta.IP.To4() != nil {
			return strconv.Itoa(ta.Port)
		}
	}
	t.Fatalf("no IPv4 acceptor in %v", addrs)
	return ""
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTCPEcho(t *testing.T) {
	loop := startLoop(t)
	log, _ := quietLogger()
	srv := server.NewTCPServer(loop, echo, 0, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	converse(t, stream.NewTCPClient(loop, "127.0.0.1", tcpPort(t, srv.Addrs())))

	st := srv.Stats()
	if st.Accepted != 1 || st.Delivered != 1 || st.InitFailed != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestLocalEcho(t *testing.T) {
	loop := startLoop(t)
	log, _ := quietLogger()
	path := filepath.Join(t.TempDir(), "echo.sock")
	// stale endpoint left behind by a crashed process
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	srv := server.NewLocalServer(loop, echo, path, false, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	converse(t, stream.NewLocalClient(loop, path, false))

	srv.Stop()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("endpoint file survived Stop: %v", err)
	}
	srv.Stop()
}

func TestWebsocketEcho(t *testing.T) {
	loop := startLoop(t)
	log, _ := quietLogger()
	srv := server.NewWebsocketServer(loop, echo, 0, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	converse(t, stream.NewWebsocketClient(loop, "127.0.0.1", tcpPort(t, srv.Addrs()), "/echo"))
}

func TestWebsocketFailedUpgradeNotDelivered(t *testing.T) {
	loop := startLoop(t)
	log, hook := quietLogger()
	var delivered atomic.Int32
	srv := server.NewWebsocketServer(loop, func(s api.Stream) {
		delivered.Add(1)
		echo(s)
	}, 0,
		server.WithLogger(log), server.WithHandshakeTimeout(time.Second))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.Dial("tcp4", "127.0.0.1:"+tcpPort(t, srv.Addrs()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	eventually(t, "init failure", func() bool { return srv.Stats().InitFailed == 1 })
	if delivered.Load() != 0 || srv.Stats().Delivered != 0 {
		t.Error("failed upgrade reached the owner")
	}

	// the loop keeps accepting
	converse(t, stream.NewWebsocketClient(loop, "127.0.0.1", tcpPort(t, srv.Addrs()), "/"))
	eventually(t, "delivery", func() bool { return delivered.Load() == 1 })

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "server: stream initialization failed" {
			warned = e.Data["conn"] != nil
		}
	}
	if !warned {
		t.Error("init failure not logged with a connection id")
	}
}

func TestStoppedLoopReleasesAcceptedConnection(t *testing.T) {
	loop := reactor.New()
	go loop.Run()
	log, _ := quietLogger()
	var delivered atomic.Int32
	srv := server.NewWebsocketServer(loop, func(api.Stream) { delivered.Add(1) }, 0, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()
	port := tcpPort(t, srv.Addrs())

	conn, err := net.Dial("tcp4", "127.0.0.1:"+port)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	// the upgrade waits for our request, so the loop stops mid-initialization
	eventually(t, "accept", func() bool { return srv.Stats().Accepted == 1 })
	loop.Stop()

	ws, err := protocol.Handshake(conn, "127.0.0.1", port, "/")
	if err != nil {
		// the server dropped the socket before upgrading
		return
	}
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := ws.ReadMessage(); !protocol.IsClosure(err) {
		t.Errorf("undelivered connection still open: %v", err)
	}
	if delivered.Load() != 0 {
		t.Error("stream delivered on a stopped loop")
	}
}

func TestCallbackPanicDoesNotStopServer(t *testing.T) {
	loop := startLoop(t)
	log, hook := quietLogger()
	var calls atomic.Int32
	srv := server.NewTCPServer(loop, func(s api.Stream) {
		if calls.Add(1) == 1 {
			panic("owner bug")
		}
		s.Close()
	}, 0, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	port := tcpPort(t, srv.Addrs())
	for i := 0; i < 2; i++ {
		c, err := net.Dial("tcp4", "127.0.0.1:"+port)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
	}
	eventually(t, "both deliveries", func() bool { return calls.Load() == 2 })

	found := false
	for _, e := range hook.AllEntries() {
		found = found || e.Message == "server: new stream callback panicked"
	}
	if !found {
		t.Error("panic not logged")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	loop := startLoop(t)
	log, _ := quietLogger()
	srv := server.NewTCPServer(loop, func(s api.Stream) { s.Close() }, 0, server.WithLogger(log))

	srv.Stop() // stopping a stopped server is harmless
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Start(); !errors.Is(err, server.ErrAlreadyRunning) {
		t.Errorf("second Start = %v", err)
	}
	port := tcpPort(t, srv.Addrs())

	srv.Stop()
	srv.Stop()
	if len(srv.Addrs()) != 0 {
		t.Errorf("addrs after Stop: %v", srv.Addrs())
	}
	if _, err := net.DialTimeout("tcp4", "127.0.0.1:"+port, time.Second); err == nil {
		t.Error("listener still accepting after Stop")
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	srv.Stop()
}

func TestStartFailsWhenPortTaken(t *testing.T) {
	loop := startLoop(t)
	log, _ := quietLogger()
	first := server.NewTCPServer(loop, func(s api.Stream) { s.Close() }, 0, server.WithLogger(log))
	if err := first.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()
	if len(first.Addrs()) != 2 {
		t.Skip("no IPv6 on this host")
	}

	port := first.Addrs()[0].(*net.TCPAddr).Port
	second := server.NewTCPServer(loop, func(s api.Stream) { s.Close() }, port, server.WithLogger(log))
	if err := second.Start(); err == nil {
		second.Stop()
		t.Fatal("second server bound a taken port")
	}
}
