// ABOUTME: Microphone substitutes for the simulator
// ABOUTME: Generators fill device-rate blocks; Paced delivers them in real time
package source

import (
	"log"
	"sync"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// Generator produces successive blocks of mono device-rate audio
type Generator interface {
	Fill(blk *audio.Block) error
	Close() error
}

// BlockPeriod is the real-time duration of one block
var BlockPeriod = time.Duration(audio.BlockSamples) * time.Second / time.Duration(audio.DeviceSampleRate)

// Paced is a capture queue filled by a generator at the device rate.
// It implements audio.BlockSource and is safe for one producer and one
// consumer goroutine.
type Paced struct {
	gen Generator

	mu      sync.Mutex
	q       *audio.BlockQueue
	dropped uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPaced creates a capture queue holding capacity blocks
func NewPaced(gen Generator, capacity int) *Paced {
	return &Paced{
		gen: gen,
		q:   audio.NewBlockQueue(capacity),
	}
}

// Start produces blocks in the background until Stop
func (p *Paced) Start() {
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
}

func (p *Paced) run() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	var produced int64
	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start) / BlockPeriod)
			if err := p.Pump(int(due - produced)); err != nil {
				log.Printf("Microphone source error: %v", err)
				return
			}
			produced = due
		}
	}
}

// Pump generates n blocks immediately
func (p *Paced) Pump(n int) error {
	var blk audio.Block
	for i := 0; i < n; i++ {
		if err := p.gen.Fill(&blk); err != nil {
			return err
		}
		p.mu.Lock()
		if !p.q.Push(&blk) {
			p.dropped++
		}
		p.mu.Unlock()
	}
	return nil
}

// Available returns the number of captured blocks
func (p *Paced) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Len()
}

// Read returns the oldest captured block
func (p *Paced) Read() *audio.Block {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Front()
}

// Release frees the block returned by Read
func (p *Paced) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.q.Pop()
}

// Dropped returns blocks lost because the consumer fell behind
func (p *Paced) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Stop halts production and closes the generator
func (p *Paced) Stop() error {
	if p.stop != nil {
		close(p.stop)
		p.wg.Wait()
		p.stop = nil
	}
	return p.gen.Close()
}
