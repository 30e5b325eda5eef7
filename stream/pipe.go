// File: stream/pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/momentics/hioload-stream/api"
)

// pipe carries the read/write/close primitives shared by the byte-oriented
// transports (File, TCP, Local).
type pipe struct {
	rwc    io.ReadWriteCloser
	closed atomic.Bool
}

func (p *pipe) attach(rwc io.ReadWriteCloser) {
	p.rwc = rwc
	p.closed.Store(false)
}

func (p *pipe) ready() bool { return p.rwc != nil && !p.closed.Load() }

func (p *pipe) readAtLeast(b []byte, min int) (int, error) {
	if !p.ready() {
		return 0, api.ErrTransportClosed
	}
	n, err := io.ReadAtLeast(p.rwc, b, min)
	return n, p.closedError(err)
}

// write sends the spans with vectored I/O where the transport supports it.
func (p *pipe) write(v api.ConstBufferVector) (int, error) {
	if !p.ready() {
		return 0, api.ErrTransportClosed
	}
	// WriteTo consumes its receiver; the caller's vector stays intact.
	bufs := make(net.Buffers, len(v))
	copy(bufs, v)
	n, err := bufs.WriteTo(p.rwc)
	return int(n), p.closedError(err)
}

// closedError reports I/O cut short by a concurrent close as
// ErrTransportClosed; end of stream and other failures pass through.
func (p *pipe) closedError(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if p.closed.Load() {
		return api.ErrTransportClosed
	}
	return err
}

func (p *pipe) close() error {
	if p.rwc == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.rwc.Close()
}
