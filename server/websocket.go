// File: server/websocket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"

	"github.com/momentics/hioload-stream/reactor"
	"github.com/momentics/hioload-stream/stream"
)

// WebsocketServer accepts TCP connections on both address families and
// upgrades each one to a websocket before handing it out.
type WebsocketServer struct {
	*acceptor
	port int
}

var _ Server = (*WebsocketServer)(nil)

// NewWebsocketServer creates a stopped websocket server. The upgrade of
// every connection is bounded by the configured handshake timeout.
func NewWebsocketServer(loop *reactor.Loop, onStream NewStreamFunc, port int, opts ...Option) *WebsocketServer {
	cfg := buildConfig(opts)
	timeout := cfg.HandshakeTimeout
	a := newAcceptor(loop, onStream, "websocket", cfg, func(c net.Conn) *stream.Stream {
		return stream.NewWebsocketServerStream(loop, c, timeout)
	})
	return &WebsocketServer{acceptor: a, port: port}
}

func (s *WebsocketServer) Start() error {
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

func (s *WebsocketServer) Stop() {
	if s.shutdown() {
		s.log.Info("server: stopped")
	}
}

func (s *WebsocketServer) Addrs() []net.Addr { return s.addrs() }

func (s *WebsocketServer) Stats() Stats { return s.stats() }
