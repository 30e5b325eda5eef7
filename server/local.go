// File: server/local.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/momentics/hioload-stream/reactor"
	"github.com/momentics/hioload-stream/stream"
)

// LocalServer accepts Unix-domain connections on a filesystem path or an
// abstract name. A path endpoint is removed before binding and on every Stop.
type LocalServer struct {
	*acceptor
	path     string
	abstract bool
}

var _ Server = (*LocalServer)(nil)

// NewLocalServer creates a stopped Unix-domain server. Clients must use the
// same abstract flag.
func NewLocalServer(loop *reactor.Loop, onStream NewStreamFunc, path string, abstract bool, opts ...Option) *LocalServer {
	cfg := buildConfig(opts)
	a := newAcceptor(loop, onStream, "local", cfg, func(c net.Conn) *stream.Stream {
		return stream.NewLocalServerStream(loop, c, path)
	})
	return &LocalServer{acceptor: a, path: path, abstract: abstract}
}

func (s *LocalServer) Start() error {
	if s.isRunning() {
		return ErrAlreadyRunning
	}
	if err := s.removeEndpoint(); err != nil {
		return err
	}
	ln, err := net.Listen("unix", stream.SocketName(s.path, s.abstract))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	// The endpoint file is removed by Stop, not by the runtime.
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	s.serve([]net.Listener{ln})
	s.log.WithField("path", s.path).Info("server: listening")
	return nil
}

func (s *LocalServer) Stop() {
	if !s.shutdown() {
		return
	}
	if err := s.removeEndpoint(); err != nil {
		s.log.WithError(err).Warn("server: endpoint removal failed")
	}
	s.log.WithField("path", s.path).Info("server: stopped")
}

func (s *LocalServer) Addrs() []net.Addr { return s.addrs() }

func (s *LocalServer) Stats() Stats { return s.stats() }

func (s *LocalServer) removeEndpoint() error {
	if s.abstract {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove endpoint %s: %w", s.path, err)
	}
	return nil
}
