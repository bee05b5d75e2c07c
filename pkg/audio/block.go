// ABOUTME: Block source and sink contracts plus a fixed-capacity block ring
// ABOUTME: Models the hardware record/play queues the engines drain and fill each tick
package audio

// BlockSource is a capture queue: check Available, Read the head block,
// then Release it once processed.
type BlockSource interface {
	// Available returns the number of blocks ready to read
	Available() int

	// Read returns the head block; valid until Release
	Read() *Block

	// Release frees the block returned by Read
	Release()
}

// BlockSink is a playback queue: check Available, fill the Buffer,
// then Commit it for output.
type BlockSink interface {
	// Available returns the number of blocks that can be accepted
	Available() int

	// Buffer returns the writable block; valid until Commit
	Buffer() *Block

	// Commit hands the buffer filled since the last Commit to the output
	Commit()
}

// BlockQueue is a fixed-capacity ring of blocks. It is not safe for
// concurrent use; adapters that cross goroutines guard it themselves.
type BlockQueue struct {
	blocks []Block
	head   int
	count  int
}

// NewBlockQueue creates a ring holding up to capacity blocks
func NewBlockQueue(capacity int) *BlockQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &BlockQueue{blocks: make([]Block, capacity)}
}

// Cap returns the ring capacity
func (q *BlockQueue) Cap() int { return len(q.blocks) }

// Len returns the number of queued blocks
func (q *BlockQueue) Len() int { return q.count }

// Free returns the number of empty slots
func (q *BlockQueue) Free() int { return len(q.blocks) - q.count }

// Push copies blk into the tail. Returns false when full.
func (q *BlockQueue) Push(blk *Block) bool {
	if q.count == len(q.blocks) {
		return false
	}
	q.blocks[(q.head+q.count)%len(q.blocks)] = *blk
	q.count++
	return true
}

// PushOverwrite copies blk into the tail, dropping the oldest block when full.
// Returns true if a block was dropped.
func (q *BlockQueue) PushOverwrite(blk *Block) bool {
	dropped := false
	if q.count == len(q.blocks) {
		q.Pop()
		dropped = true
	}
	q.Push(blk)
	return dropped
}

// Front returns the head block or nil when empty
func (q *BlockQueue) Front() *Block {
	if q.count == 0 {
		return nil
	}
	return &q.blocks[q.head]
}

// Pop discards the head block
func (q *BlockQueue) Pop() {
	if q.count == 0 {
		return
	}
	q.head = (q.head + 1) % len(q.blocks)
	q.count--
}

// Reset empties the ring
func (q *BlockQueue) Reset() {
	q.head = 0
	q.count = 0
}

// tail returns the slot after the last queued block; only valid when Free > 0
func (q *BlockQueue) tail() *Block {
	return &q.blocks[(q.head+q.count)%len(q.blocks)]
}

// Source exposes the ring as a BlockSource
func (q *BlockQueue) Source() BlockSource { return queueSource{q} }

// Sink exposes the ring as a BlockSink
func (q *BlockQueue) Sink() BlockSink { return queueSink{q} }

type queueSource struct{ q *BlockQueue }

func (s queueSource) Available() int { return s.q.Len() }
func (s queueSource) Read() *Block   { return s.q.Front() }
func (s queueSource) Release()       { s.q.Pop() }

type queueSink struct{ q *BlockQueue }

func (s queueSink) Available() int { return s.q.Free() }

func (s queueSink) Buffer() *Block {
	if s.q.Free() == 0 {
		return nil
	}
	return s.q.tail()
}

func (s queueSink) Commit() {
	if s.q.Free() == 0 {
		return
	}
	s.q.count++
}
