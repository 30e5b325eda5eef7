// File: stream/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"time"

	"github.com/momentics/hioload-stream/api"
	"github.com/momentics/hioload-stream/reactor"
)

// readChunk is the minimum fill request handed to a transport. Transports
// may return more than asked; the surplus stays in the read-ahead buffer.
const readChunk = 64 * 1024

// conduit is the capability set a transport plugs into a Stream.
type conduit interface {
	// open brings the transport up. timeout <= 0 selects the transport default.
	open(timeout time.Duration) error
	ready() bool
	// readAtLeast reads into p until at least min bytes arrived or an error
	// occurred; the bytes read are valid in both cases.
	readAtLeast(p []byte, min int) (int, error)
	write(v api.ConstBufferVector) (int, error)
	close() error
	endPointURL() string
	remoteHost() string
}

// Stream is the buffered byte stream. It is not safe for concurrent use:
// at most one operation of each direction may be pending, and synchronous
// calls must not overlap asynchronous ones.
type Stream struct {
	loop    *reactor.Loop
	c       conduit
	rb      buffer
	scratch []byte
}

var _ api.Stream = (*Stream)(nil)

func newStream(loop *reactor.Loop, c conduit) *Stream {
	return &Stream{loop: loop, c: c}
}

// Loop returns the reactor loop completions are delivered on.
func (s *Stream) Loop() *reactor.Loop { return s.loop }

func (s *Stream) EndPointURL() string { return s.c.endPointURL() }

func (s *Stream) RemoteHost() string { return s.c.remoteHost() }

// Init opens the transport with its default timeout. It succeeds at once on
// a ready stream.
func (s *Stream) Init() error {
	return s.InitTimeout(0)
}

// InitTimeout is Init with a per-call connect/handshake deadline.
func (s *Stream) InitTimeout(d time.Duration) error {
	if s.c.ready() {
		return nil
	}
	return s.wrap("init", s.c.open(d))
}

func (s *Stream) AsyncInit(cb api.CompletionFunc) {
	s.AsyncInitTimeout(0, cb)
}

// AsyncInitTimeout is AsyncInit with a per-call connect/handshake deadline.
func (s *Stream) AsyncInitTimeout(d time.Duration, cb api.CompletionFunc) {
	if s.c.ready() {
		cb(nil)
		return
	}
	s.loop.Go(func() func() {
		err := s.wrap("init", s.c.open(d))
		return func() { cb(err) }
	})
}

// Read makes sure at least n bytes are buffered.
func (s *Stream) Read(n int) error {
	short := n - s.rb.size()
	if short <= 0 {
		return nil
	}
	p := s.scratchFor(short)
	k, err := s.c.readAtLeast(p, short)
	s.rb.append(p[:k])
	return s.wrap("read", err)
}

// AsyncRead completes inline when n bytes are already buffered.
func (s *Stream) AsyncRead(n int, cb api.CompletionFunc) {
	short := n - s.rb.size()
	if short <= 0 {
		cb(nil)
		return
	}
	s.fill(short, cb)
}

// ReadSome makes sure at least one byte is buffered and returns Size.
func (s *Stream) ReadSome() (int, error) {
	err := s.Read(1)
	return s.rb.size(), err
}

func (s *Stream) AsyncReadSome(cb api.ReadCompletionFunc) {
	if s.rb.size() > 0 {
		cb(nil, s.rb.size())
		return
	}
	s.fill(1, func(err error) { cb(err, s.rb.size()) })
}

// fill requests min bytes from the transport off the loop, then appends
// whatever arrived and runs done on the loop.
func (s *Stream) fill(min int, done func(error)) {
	p := s.scratchFor(min)
	s.loop.Go(func() func() {
		k, err := s.c.readAtLeast(p, min)
		return func() {
			s.rb.append(p[:k])
			done(s.wrap("read", err))
		}
	})
}

func (s *Stream) scratchFor(min int) []byte {
	n := max(min, readChunk)
	if len(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	return s.scratch[:n]
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.WriteVector(api.ConstBufferVector{p})
}

// WriteVector sends all spans in order with one transport write.
func (s *Stream) WriteVector(v api.ConstBufferVector) (int, error) {
	n, err := s.c.write(v)
	return n, s.wrap("write", err)
}

func (s *Stream) AsyncWrite(p []byte, cb api.WriteCompletionFunc) {
	s.AsyncWriteVector(api.ConstBufferVector{p}, cb)
}

func (s *Stream) AsyncWriteVector(v api.ConstBufferVector, cb api.WriteCompletionFunc) {
	s.loop.Go(func() func() {
		n, err := s.c.write(v)
		err = s.wrap("write", err)
		return func() { cb(err, n) }
	})
}

// Close shuts the transport down. Closing a closed stream is a no-op.
func (s *Stream) Close() error {
	return s.wrap("close", s.c.close())
}

func (s *Stream) AsyncClose(cb api.CompletionFunc) {
	s.loop.Go(func() func() {
		err := s.wrap("close", s.c.close())
		return func() { cb(err) }
	})
}

func (s *Stream) Size() int { return s.rb.size() }

func (s *Stream) Data() []byte { return s.rb.data() }

func (s *Stream) Consume(n int) { s.rb.consume(n) }

func (s *Stream) CopyDataAndConsume(dst []byte, n int) { s.rb.copyAndConsume(dst, n) }

func (s *Stream) wrap(op string, err error) error {
	return api.Wrap(op, s.c.endPointURL(), err)
}
