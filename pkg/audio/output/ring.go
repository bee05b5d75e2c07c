// ABOUTME: Thread-safe block ring shared by the control loop and an audio backend
// ABOUTME: The loop fills blocks through BlockSink; the backend pulls samples with zero-fill on underrun
package output

import (
	"sync"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// BlockRing guards an audio.BlockQueue for cross-goroutine use
type BlockRing struct {
	mu     sync.Mutex
	queue  *audio.BlockQueue
	offset int // samples already consumed from the head block

	underruns uint64
	played    uint64
}

// NewBlockRing creates a ring holding up to capacity blocks
func NewBlockRing(capacity int) *BlockRing {
	return &BlockRing{queue: audio.NewBlockQueue(capacity)}
}

// Available returns the number of blocks that can be committed
func (r *BlockRing) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Free()
}

// Buffer returns the writable block, or nil when full
func (r *BlockRing) Buffer() *audio.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Sink().Buffer()
}

// Commit queues the block filled since the last Buffer call
func (r *BlockRing) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue.Sink().Commit()
}

// Pull copies queued samples into dst, zero-filling on underrun.
// Returns the number of real samples copied.
func (r *BlockRing) Pull(dst []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	read := 0
	for read < len(dst) {
		head := r.queue.Front()
		if head == nil {
			break
		}
		n := copy(dst[read:], head[r.offset:])
		read += n
		r.offset += n
		if r.offset == audio.BlockSamples {
			r.queue.Pop()
			r.offset = 0
			r.played++
		}
	}

	if read < len(dst) {
		r.underruns++
	}

	// Zero-fill remaining if underrun
	for i := read; i < len(dst); i++ {
		dst[i] = 0
	}

	return read
}

// Queued returns the number of committed blocks not yet fully played
func (r *BlockRing) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// Played returns the number of blocks fully pulled by the backend
func (r *BlockRing) Played() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.played
}

// Underruns returns the number of pulls that ran out of samples
func (r *BlockRing) Underruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.underruns
}

// Reset drops all queued audio
func (r *BlockRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue.Reset()
	r.offset = 0
}
