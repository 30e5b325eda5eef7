// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FIFO completion loop. Completions are delivered strictly in post order.

package reactor

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Run when the loop is already being run.
var ErrAlreadyRunning = errors.New("reactor: loop already running")

// Loop runs posted completions sequentially.
type Loop struct {
	mu      sync.Mutex
	tasks   *queue.Queue // of func()
	wake    chan struct{}
	stopCh  chan struct{}
	stopped bool
	running int32
	log     logrus.FieldLogger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panicking completions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(lp *Loop) {
		lp.log = l
	}
}

// New creates a stopped-until-Run loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues fn. It reports false and drops fn once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks.Add(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Go runs op on its own goroutine and posts the completion op returns.
// A nil completion is skipped.
func (l *Loop) Go(op func() func()) {
	go func() {
		if done := op(); done != nil {
			l.Post(done)
		}
	}()
}

// Pending returns the number of queued completions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// Run executes completions until Stop is called.
func (l *Loop) Run() error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&l.running, 0)

	for {
		fn, ok := l.next()
		if ok {
			l.execute(fn)
			continue
		}
		select {
		case <-l.stopCh:
			return nil
		case <-l.wake:
		}
	}
}

// Stop ends Run and discards queued completions. Stop is idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	for l.tasks.Length() > 0 {
		l.tasks.Remove()
	}
	close(l.stopCh)
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.tasks.Length() == 0 {
		return nil, false
	}
	return l.tasks.Remove().(func()), true
}

// execute runs fn, keeping the loop alive if it panics.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Error("reactor: completion panicked")
		}
	}()
	fn()
}
