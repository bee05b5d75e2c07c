// ABOUTME: Bounded byte ring shared between a reader goroutine and the control loop
// ABOUTME: Overflowing bytes are dropped and counted; the receiver resyncs on its own
package link

import (
	"errors"
	"sync"
)

// ErrEmpty is returned by ReadByte when no data is queued
var ErrEmpty = errors.New("link: no data")

// DefaultRingSize holds a couple of maximum-size frames
const DefaultRingSize = 256 * 1024

// Ring is a mutex-guarded byte FIFO
type Ring struct {
	mu      sync.Mutex
	buf     []byte
	head    int
	count   int
	dropped uint64
}

// NewRing creates a ring holding size bytes
func NewRing(size int) *Ring {
	if size < 1 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]byte, size)}
}

// Write queues as much of p as fits. It never fails; the excess is dropped.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range p {
		if r.count == len(r.buf) {
			r.dropped += uint64(len(p) - i)
			break
		}
		r.buf[(r.head+r.count)%len(r.buf)] = b
		r.count++
	}
	return len(p), nil
}

// Available returns the number of queued bytes
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadByte pops the oldest byte
func (r *Ring) ReadByte() (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0, ErrEmpty
	}
	b := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return b, nil
}

// Dropped returns the number of bytes lost to overflow
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset discards queued bytes
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}
