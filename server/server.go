// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/control"
	"github.com/momentics/hioload-stream/reactor"
	"github.com/momentics/hioload-stream/stream"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Start on a started server.
var ErrAlreadyRunning = errors.New("server: already running")

// Server is a listener that can be started and stopped repeatedly.
type Server interface {
	Start() error
	Stop()
}

// NewStreamFunc receives each successfully initialized stream, on the
// reactor loop. The callee owns the stream.
type NewStreamFunc func(api.Stream)

// Stats are the accept-loop counters of a server.
type Stats struct {
	Accepted   int64
	InitFailed int64
	Delivered  int64
}

const (
	metricAccepted   = "accepted"
	metricInitFailed = "init_failed"
	metricDelivered  = "delivered"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptor runs one accept goroutine per listener and admits every
// accepted connection through wrap and stream initialization.
type acceptor struct {
	loop     *reactor.Loop
	onStream NewStreamFunc
	wrap     func(net.Conn) *stream.Stream
	log      logrus.FieldLogger
	metrics  *control.MetricsRegistry

	mu        sync.Mutex
	listeners []net.Listener
	running   bool
	wg        sync.WaitGroup
}

func newAcceptor(loop *reactor.Loop, onStream NewStreamFunc, transport string, cfg *Config, wrap func(net.Conn) *stream.Stream) *acceptor {
	return &acceptor{
		loop:     loop,
		onStream: onStream,
		wrap:     wrap,
		log:      cfg.Logger.WithField("transport", transport),
		metrics:  control.NewMetricsRegistry(metricAccepted, metricInitFailed, metricDelivered),
	}
}

// serve takes ownership of listeners and starts accepting on each.
func (a *acceptor) serve(listeners []net.Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = listeners
	a.running = true
	for _, ln := range listeners {
		a.wg.Add(1)
		go a.acceptLoop(ln)
	}
}

func (a *acceptor) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// shutdown closes the listeners and waits for the accept goroutines.
// It reports false when the acceptor was not running.
func (a *acceptor) shutdown() bool {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return false
	}
	a.running = false
	listeners := a.listeners
	a.listeners = nil
	a.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	a.wg.Wait()
	return true
}

func (a *acceptor) addrs() []net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]net.Addr, 0, len(a.listeners))
	for _, ln := range a.listeners {
		out = append(out, ln.Addr())
	}
	return out
}

func (a *acceptor) stats() Stats {
	return Stats{
		Accepted:   a.metrics.Get(metricAccepted),
		InitFailed: a.metrics.Get(metricInitFailed),
		Delivered:  a.metrics.Get(metricDelivered),
	}
}

func (a *acceptor) acceptLoop(ln net.Listener) {
	defer a.wg.Done()
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			a.log.WithError(err).WithField("retry", delay).Warn("server: accept failed")
			time.Sleep(delay)
			continue
		}
		delay = 0
		a.admit(conn)
	}
}

// admit starts the initialization of a freshly accepted connection and
// returns without waiting for it, so the next accept is issued at once.
func (a *acceptor) admit(conn net.Conn) {
	a.metrics.Add(metricAccepted, 1)
	s := a.wrap(conn)
	log := a.log.WithFields(logrus.Fields{
		"conn":   uuid.NewString(),
		"remote": s.EndPointURL(),
	})
	log.Debug("server: connection accepted")

	if a.loop.Stopped() {
		s.Close()
		return
	}
	go func() {
		err := s.Init()
		posted := a.loop.Post(func() {
			if err != nil {
				a.metrics.Add(metricInitFailed, 1)
				log.WithError(err).Warn("server: stream initialization failed")
				s.Close()
				return
			}
			a.metrics.Add(metricDelivered, 1)
			a.deliver(s, log)
		})
		if !posted {
			// nobody will ever own the stream
			log.Debug("server: loop stopped, dropping connection")
			s.Close()
		}
	}()
}

func (a *acceptor) deliver(s *stream.Stream, log logrus.FieldLogger) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("server: new stream callback panicked")
		}
	}()
	a.onStream(s)
}
