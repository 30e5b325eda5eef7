// Package api
// Author: momentics <momentics@gmail.com>
//
// Error kinds surfaced by every stream, connector and server operation.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"syscall"
)

// Sentinel errors, one per ErrorKind. Use errors.Is against these.
var (
	ErrEndOfStream       = errors.New("end of stream")
	ErrConnectionRefused = errors.New("connection refused")
	ErrResolve           = errors.New("name resolution failed")
	ErrCanceled          = errors.New("operation canceled")
	ErrNotFound          = errors.New("no such file or directory")
	ErrProtocol          = errors.New("protocol or handshake failure")
	ErrTransport         = errors.New("transport failure")

	// ErrTransportClosed is reported for I/O on a stream that is closed or was never opened.
	ErrTransportClosed = fmt.Errorf("transport is closed")
)

// ErrorKind classifies an operation outcome.
type ErrorKind int

const (
	KindOK ErrorKind = iota
	KindEndOfStream
	KindConnectionRefused
	KindResolve
	KindCanceled
	KindNotFound
	KindProtocol
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEndOfStream:
		return "end of stream"
	case KindConnectionRefused:
		return "connection refused"
	case KindResolve:
		return "resolve failure"
	case KindCanceled:
		return "canceled"
	case KindNotFound:
		return "not found"
	case KindProtocol:
		return "protocol failure"
	case KindTransport:
		return "transport failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindEndOfStream:
		return ErrEndOfStream
	case KindConnectionRefused:
		return ErrConnectionRefused
	case KindResolve:
		return ErrResolve
	case KindCanceled:
		return ErrCanceled
	case KindNotFound:
		return ErrNotFound
	case KindProtocol:
		return ErrProtocol
	case KindTransport:
		return ErrTransport
	}
	return nil
}

// Error is the structured error returned by stream operations.
type Error struct {
	Kind     ErrorKind
	Op       string // "init", "read", "write", "close", "accept", ...
	Endpoint string // endpoint identity, may be empty
	Err      error  // underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// NewError builds an Error of an explicit kind.
func NewError(kind ErrorKind, op, endpoint string, err error) *Error {
	return &Error{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}

// Wrap classifies err and attaches operation context. Wrap(nil) is nil and an
// error that already carries a kind keeps it.
func Wrap(op, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Endpoint: endpoint, Err: err}
}

// KindOf returns the kind carried by err, classifying raw errors on the fly.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// Classify maps a raw transport error onto the taxonomy.
func Classify(err error) ErrorKind {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindEndOfStream
	case errors.As(err, &dnsErr):
		return KindResolve
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindCanceled
	default:
		return KindTransport
	}
}
