// Package buffer implements methods for efficiently writing and reading values
// to and from io.Writer and io.Reader that also expose their internal buffers.
// All multi-byte values are encoded in little-endian byte order.
package buffer

import (
	"fmt"
	"io"
)

// Writer is an interface for writers that expose their internal
// buffers.
// This interface is notably implemented by the bufio.Writer type
// (see https://pkg.go.dev/bufio#Writer) and by the Buffer type.
type Writer interface {
	io.Writer
	Flush() (err error)
	AvailableBuffer() []byte
	Available() int
}

// Reader is an interface for readers that expose their internal
// buffers.
// This interface is notably implemented by the bufio.Reader type
// (see https://pkg.go.dev/bufio#Reader) and by the Buffer type.
type Reader interface {
	io.Reader
	Size() int
	Peek(n int) ([]byte, error)
	Discard(n int) (discarded int, err error)
}

// Buffer is a simple []byte-based buffer that complies to the
// Writer and Reader interfaces. Writes append to the backing
// slice, growing it if needed, and reads consume from its front.
type Buffer struct {
	buf []byte
	off int
}

// NewBuffer creates a new Buffer with b as its initial content.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// NewBufferSize creates a new empty Buffer with the given capacity.
func NewBufferSize(size int) *Buffer {
	return &Buffer{buf: make([]byte, 0, size)}
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Flush is a no-op.
func (b *Buffer) Flush() (err error) {
	return
}

// AvailableBuffer returns an empty slice with the remaining capacity of the buffer.
// The slice is intended to be appended to and passed to an immediately succeeding
// [Buffer.Write] call.
func (b *Buffer) AvailableBuffer() []byte {
	return b.buf[len(b.buf):]
}

// Available returns the number of bytes that can be written without reallocation.
// The buffer grows on demand so that at least minAvailable bytes are always available.
func (b *Buffer) Available() int {
	if cap(b.buf)-len(b.buf) < minAvailable {
		b.grow(minAvailable)
	}
	return cap(b.buf) - len(b.buf)
}

const minAvailable = 512

func (b *Buffer) grow(n int) {
	nb := make([]byte, len(b.buf), 2*cap(b.buf)+n)
	copy(nb, b.buf)
	b.buf = nb
}

// Read reads len(p) bytes from the buffer into p.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if b.off >= len(b.buf) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n = copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

// Size returns the size of the buffer.
func (b *Buffer) Size() int {
	return len(b.buf)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Peek returns the next n bytes without advancing the reader.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if b.off+n > len(b.buf) {
		return b.buf[b.off:], fmt.Errorf("cannot Peek: %w", io.ErrUnexpectedEOF)
	}
	return b.buf[b.off : b.off+n], nil
}

// Discard skips the next n bytes.
func (b *Buffer) Discard(n int) (discarded int, err error) {
	if rem := len(b.buf) - b.off; n > rem {
		b.off = len(b.buf)
		return rem, fmt.Errorf("cannot Discard: %w", io.ErrUnexpectedEOF)
	}
	b.off += n
	return n, nil
}

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.off:]
}

// Reset empties the buffer and keeps its capacity.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
}
