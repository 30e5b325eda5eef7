// File: server/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/hioload-stream/reactor"
	"github.com/momentics/hioload-stream/stream"
	"github.com/sirupsen/logrus"
)

// TCPServer accepts TCP connections on one port over IPv4 and IPv6.
type TCPServer struct {
	*acceptor
	port int
}

var _ Server = (*TCPServer)(nil)

// NewTCPServer creates a stopped TCP server. Port 0 picks an ephemeral port.
func NewTCPServer(loop *reactor.Loop, onStream NewStreamFunc, port int, opts ...Option) *TCPServer {
	cfg := buildConfig(opts)
	a := newAcceptor(loop, onStream, "tcp", cfg, func(c net.Conn) *stream.Stream {
		return stream.NewTCPServerStream(loop, c)
	})
	return &TCPServer{acceptor: a, port: port}
}

// Start binds the IPv4 and IPv6 acceptors and begins accepting.
func (s *TCPServer) Start() error {
	if s.isRunning() {
		return ErrAlreadyRunning
	}
	lns, err := listenDualStack(s.port, s.log)
	if err != nil {
		return err
	}
	s.serve(lns)
	s.log.WithField("addrs", s.Addrs()).Info("server: listening")
	return nil
}

// Stop closes the acceptors. It is idempotent.
func (s *TCPServer) Stop() {
	if s.shutdown() {
		s.log.Info("server: stopped")
	}
}

// Addrs returns the bound listener addresses of a running server.
func (s *TCPServer) Addrs() []net.Addr { return s.addrs() }

// Stats returns the accept-loop counters.
func (s *TCPServer) Stats() Stats { return s.stats() }

// listenDualStack binds tcp4 and IPv6-only tcp6 acceptors on port. Failing
// to bind one family is logged; failing both is an error. With port 0 the
// IPv6 acceptor reuses the ephemeral IPv4 port.
func listenDualStack(port int, log logrus.FieldLogger) ([]net.Listener, error) {
	lc := net.ListenConfig{Control: listenerControl}
	ctx := context.Background()

	var lns []net.Listener
	ln4, err4 := lc.Listen(ctx, "tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err4 == nil {
		lns = append(lns, ln4)
		if port == 0 {
			port = ln4.Addr().(*net.TCPAddr).Port
		}
	} else {
		log.WithError(err4).Warn("server: ipv4 acceptor unavailable")
	}

	ln6, err6 := lc.Listen(ctx, "tcp6", net.JoinHostPort("::", strconv.Itoa(port)))
	if err6 == nil {
		lns = append(lns, ln6)
	} else {
		log.WithError(err6).Warn("server: ipv6 acceptor unavailable")
	}

	if len(lns) == 0 {
		return nil, fmt.Errorf("listen on port %d: %w", port, errors.Join(err4, err6))
	}
	return lns, nil
}
