// ABOUTME: Test tone and silence generators
// ABOUTME: Stand in for a microphone when no file is given
package source

import (
	"math"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// Tone generates a sine wave
type Tone struct {
	sampleIndex uint64
	frequency   float64
	amplitude   float64
}

// NewTone creates a tone at frequency Hz with amplitude in 0..1
func NewTone(frequency, amplitude float64) *Tone {
	return &Tone{
		frequency: frequency,
		amplitude: amplitude,
	}
}

// Fill writes the next block of the tone
func (t *Tone) Fill(blk *audio.Block) error {
	for i := range blk {
		pos := float64(t.sampleIndex+uint64(i)) / float64(audio.DeviceSampleRate)
		sample := math.Sin(2 * math.Pi * t.frequency * pos)
		blk[i] = int16(sample * 32767.0 * t.amplitude)
	}
	t.sampleIndex += uint64(len(blk))
	return nil
}

func (t *Tone) Close() error { return nil }

// Silence generates zeros
type Silence struct{}

func (Silence) Fill(blk *audio.Block) error {
	*blk = audio.Block{}
	return nil
}

func (Silence) Close() error { return nil }
