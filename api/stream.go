// File: api/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport-independent buffered byte stream contract.

package api

// ConstBufferVector is an ordered list of spans sent by a single write call.
// Spans are not copied; for asynchronous writes they must stay untouched
// until the completion runs.
type ConstBufferVector [][]byte

// Len returns the total number of bytes in the vector.
func (v ConstBufferVector) Len() int {
	n := 0
	for _, b := range v {
		n += len(b)
	}
	return n
}

// CompletionFunc receives the outcome of init, read and close operations.
type CompletionFunc func(err error)

// ReadCompletionFunc receives the outcome of a read-some operation and the
// number of bytes available in the read-ahead buffer.
type ReadCompletionFunc func(err error, n int)

// WriteCompletionFunc receives the outcome of a write and the bytes written.
type WriteCompletionFunc func(err error, n int)

// Stream reads and writes bytes over one transport through a read-ahead buffer.
//
// Asynchronous completions run on the stream's reactor loop. Completions for
// data already buffered run inline, before the async call returns.
type Stream interface {
	// Init prepares the stream for I/O (open, connect, handshake). Calling it
	// on a ready stream succeeds without side effects.
	Init() error
	AsyncInit(cb CompletionFunc)

	// EndPointURL identifies the remote endpoint.
	EndPointURL() string
	// RemoteHost is the remote host or address, empty for local transports.
	RemoteHost() string

	// Read ensures at least n bytes are buffered.
	Read(n int) error
	AsyncRead(n int, cb CompletionFunc)
	// ReadSome ensures at least one byte is buffered and reports Size().
	ReadSome() (int, error)
	AsyncReadSome(cb ReadCompletionFunc)

	Write(p []byte) (int, error)
	WriteVector(v ConstBufferVector) (int, error)
	AsyncWrite(p []byte, cb WriteCompletionFunc)
	AsyncWriteVector(v ConstBufferVector, cb WriteCompletionFunc)

	Close() error
	AsyncClose(cb CompletionFunc)

	// Size is the number of unconsumed buffered bytes.
	Size() int
	// Data views the unconsumed bytes; valid until the next buffer mutation.
	Data() []byte
	// Consume drops min(n, Size()) bytes from the front.
	Consume(n int)
	// CopyDataAndConsume copies n bytes into dst and consumes them. n must not exceed Size().
	CopyDataAndConsume(dst []byte, n int)
}
