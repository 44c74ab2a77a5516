// Package tailbuffer provides a bounded buffer that retains only the most
// recently written bytes. It is used to keep the tail of raw engine output
// around for diagnostics without unbounded growth.
package tailbuffer

import "sync"

// Buffer retains the tail of everything written to it, up to a fixed
// capacity. Writes never fail and never block.
type Buffer struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
}

// New creates a buffer retaining at most capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Write implements io.Writer. Older bytes are discarded once the capacity is
// exceeded.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(p) >= b.capacity {
		b.buf = append(b.buf[:0], p[len(p)-b.capacity:]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	if overflow := len(b.buf) - b.capacity; overflow > 0 {
		b.buf = append(b.buf[:0], b.buf[overflow:]...)
	}
	return len(p), nil
}

// WriteString appends s, discarding older bytes past capacity.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// String returns the retained tail.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Len returns the number of retained bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
