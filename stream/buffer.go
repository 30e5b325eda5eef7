// File: stream/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

// buffer is the read-ahead FIFO. Bytes enter at the tail only through append
// and leave from the front only through consume.
type buffer struct {
	buf []byte
	off int
}

func (b *buffer) size() int { return len(b.buf) - b.off }

func (b *buffer) data() []byte { return b.buf[b.off:] }

// consume drops min(n, size) bytes from the front.
func (b *buffer) consume(n int) {
	if n <= 0 {
		return
	}
	if n >= b.size() {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	b.off += n
}

// copyAndConsume copies n bytes to dst and consumes them.
// n must not exceed size.
func (b *buffer) copyAndConsume(dst []byte, n int) {
	copy(dst[:n], b.buf[b.off:b.off+n])
	b.consume(n)
}

// append adds p at the tail, reclaiming consumed space first when the
// backing array is full.
func (b *buffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.off > 0 && len(b.buf)+len(p) > cap(b.buf) {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
	b.buf = append(b.buf, p...)
}
