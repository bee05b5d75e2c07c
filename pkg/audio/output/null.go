// ABOUTME: Null audio output that discards blocks at real-time pace
// ABOUTME: Used for headless runs and tests where no sound device exists
package output

import (
	"log"
	"sync"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// Null drains its ring on a ticker, mimicking a speaker's consumption rate
type Null struct {
	*BlockRing

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
	volume  int
	muted   bool
}

// NewNull creates a discarding output queueing up to capacity blocks
func NewNull(capacity int) *Null {
	return &Null{
		BlockRing: NewBlockRing(capacity),
		volume:    100,
	}
}

// Open starts draining one block per block period at sampleRate
func (n *Null) Open(sampleRate int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = audio.DeviceSampleRate
	}

	period := time.Duration(audio.BlockSamples) * time.Second / time.Duration(sampleRate)
	n.stop = make(chan struct{})
	n.stopped.Add(1)

	go func(stop chan struct{}) {
		defer n.stopped.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		var blk audio.Block
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n.Pull(blk[:])
			}
		}
	}(n.stop)

	log.Printf("Null audio output draining at %dHz", sampleRate)
	return nil
}

// SetVolume records the volume (0-100)
func (n *Null) SetVolume(volume int) {
	n.mu.Lock()
	n.volume = volume
	n.mu.Unlock()
}

// SetMuted records mute state
func (n *Null) SetMuted(muted bool) {
	n.mu.Lock()
	n.muted = muted
	n.mu.Unlock()
}

// Close stops the drain goroutine
func (n *Null) Close() error {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		n.stopped.Wait()
	}
	n.Reset()
	return nil
}
