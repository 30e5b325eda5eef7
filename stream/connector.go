// File: stream/connector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resolve and connect phases of the TCP and websocket clients, each raced
// against a deadline timer.

package stream

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/hioload-stream/api"
)

// DefaultConnectTimeout bounds connect and, for websocket, the handshake.
const DefaultConnectTimeout = 5000 * time.Millisecond

// ErrDeadline is the cause carried by canceled-kind errors when the deadline
// timer won the race.
var ErrDeadline = errors.New("deadline timer expired")

type connectOptions struct {
	timeout  time.Duration
	resolver *net.Resolver
}

// Option configures a client connector.
type Option func(*connectOptions)

// WithConnectTimeout sets the default connect/handshake deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *connectOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r *net.Resolver) Option {
	return func(o *connectOptions) {
		if r != nil {
			o.resolver = r
		}
	}
}

func newConnectOptions(opts []Option) connectOptions {
	o := connectOptions{timeout: DefaultConnectTimeout, resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o connectOptions) deadline(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return o.timeout
}

// deadlineTimer runs onFire unless disarmed first. Exactly one side wins.
type deadlineTimer struct {
	mu    sync.Mutex
	t     *time.Timer
	fired bool
	done  bool
}

func armDeadline(d time.Duration, onFire func()) *deadlineTimer {
	dt := &deadlineTimer{}
	dt.mu.Lock()
	dt.t = time.AfterFunc(d, func() {
		dt.mu.Lock()
		if dt.done {
			dt.mu.Unlock()
			return
		}
		dt.fired = true
		dt.done = true
		dt.mu.Unlock()
		onFire()
	})
	dt.mu.Unlock()
	return dt
}

// disarm stops the timer and reports whether it had already fired.
func (dt *deadlineTimer) disarm() bool {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	if !dt.done {
		dt.done = true
		dt.t.Stop()
	}
	return dt.fired
}

// resolve looks host and port up. port may be a service name.
func resolve(r *net.Resolver, host, port string) ([]string, error) {
	ctx := context.Background()
	hosts, err := r.LookupHost(ctx, host)
	if err == nil && len(hosts) == 0 {
		err = &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	if err != nil {
		return nil, api.NewError(api.KindResolve, "resolve", host, err)
	}
	pn, err := r.LookupPort(ctx, "tcp", port)
	if err != nil {
		return nil, api.NewError(api.KindResolve, "resolve", port, err)
	}
	ps := strconv.Itoa(pn)
	addrs := make([]string, len(hosts))
	for i, h := range hosts {
		addrs[i] = net.JoinHostPort(h, ps)
	}
	return addrs, nil
}

// connect resolves host:port and dials the resolved addresses in order until
// one answers. The deadline covers the whole connect phase; when it fires the
// pending dial is aborted and the outcome is the canceled kind.
func connect(o connectOptions, host, port string, timeout time.Duration) (net.Conn, error) {
	addrs, err := resolve(o.resolver, host, port)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dt := armDeadline(o.deadline(timeout), cancel)

	var (
		conn  net.Conn
		d     net.Dialer
		cause error
	)
	for _, addr := range addrs {
		conn, cause = d.DialContext(ctx, "tcp", addr)
		if cause == nil || ctx.Err() != nil {
			break
		}
	}
	if dt.disarm() {
		if conn != nil {
			conn.Close()
		}
		return nil, api.NewError(api.KindCanceled, "connect", host+":"+port, ErrDeadline)
	}
	if cause != nil {
		return nil, cause
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}
