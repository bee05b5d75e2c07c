// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams queued device blocks with software volume control using oto library
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	*BlockRing

	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	volume     int
	muted      bool
	ready      bool
	scratch    []int16
}

// NewOto creates a new Oto output queueing up to capacity blocks
func NewOto(capacity int) *Oto {
	return &Oto{
		BlockRing: NewBlockRing(capacity),
		volume:    100,
		muted:     false,
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto only allows one context per process
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate {
			log.Printf("Warning: sample rate change %dHz -> %dHz ignored, oto doesn't support reinitialization",
				o.sampleRate, sampleRate)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate

	// The player pulls from the ring through Read
	o.player = o.otoCtx.NewPlayer(o)
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, mono", sampleRate)

	return nil
}

// Read implements io.Reader for the oto player. It never blocks; missing
// samples are rendered as silence.
func (o *Oto) Read(p []byte) (int, error) {
	samples := len(p) / 2
	if cap(o.scratch) < samples {
		o.scratch = make([]int16, samples)
	}
	buf := o.scratch[:samples]

	o.Pull(buf)

	o.mu.Lock()
	volume, muted := o.volume, o.muted
	o.mu.Unlock()

	applyVolume(buf, volume, muted)

	for i, sample := range buf {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(sample))
	}
	return samples * 2, nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	o.Reset()
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyVolume applies volume and mute to samples in place with clipping protection
func applyVolume(samples []int16, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1.0 {
		return
	}

	for i, sample := range samples {
		samples[i] = audio.Clamp16(int32(float64(sample) * multiplier))
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
