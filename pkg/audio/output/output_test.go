// ABOUTME: Audio output tests
// ABOUTME: Verifies Output implementations, the shared block ring and volume scaling
package output

import (
	"testing"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestNullImplementsOutput(t *testing.T) {
	var _ Output = (*Null)(nil)
}

func TestBlockRingSinkAndPull(t *testing.T) {
	r := NewBlockRing(2)

	if r.Available() != 2 {
		t.Fatalf("expected 2 free blocks, got %d", r.Available())
	}

	buf := r.Buffer()
	for i := range buf {
		buf[i] = int16(i)
	}
	r.Commit()

	if r.Queued() != 1 {
		t.Fatalf("expected 1 queued block, got %d", r.Queued())
	}

	// Pull half a block, then the rest plus underrun
	dst := make([]int16, audio.BlockSamples/2)
	if n := r.Pull(dst); n != len(dst) {
		t.Fatalf("expected %d samples, got %d", len(dst), n)
	}
	if dst[1] != 1 {
		t.Errorf("expected sample 1, got %d", dst[1])
	}

	dst = make([]int16, audio.BlockSamples)
	n := r.Pull(dst)
	if n != audio.BlockSamples/2 {
		t.Fatalf("expected %d samples, got %d", audio.BlockSamples/2, n)
	}
	if dst[0] != int16(audio.BlockSamples/2) {
		t.Errorf("expected continuation sample %d, got %d", audio.BlockSamples/2, dst[0])
	}
	if dst[len(dst)-1] != 0 {
		t.Errorf("expected zero-fill on underrun, got %d", dst[len(dst)-1])
	}

	if r.Played() != 1 {
		t.Errorf("expected 1 played block, got %d", r.Played())
	}
	if r.Underruns() != 1 {
		t.Errorf("expected 1 underrun, got %d", r.Underruns())
	}
}

func TestBlockRingFull(t *testing.T) {
	r := NewBlockRing(1)
	r.Buffer()[0] = 1
	r.Commit()

	if r.Available() != 0 {
		t.Errorf("expected full ring, got %d free", r.Available())
	}
	if r.Buffer() != nil {
		t.Error("expected nil buffer when full")
	}
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name     string
		volume   int
		muted    bool
		input    int16
		expected int16
	}{
		{"full volume", 100, false, 1000, 1000},
		{"half volume", 50, false, 1000, 500},
		{"muted", 100, true, 1000, 0},
		{"zero volume", 0, false, -1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := []int16{tt.input}
			applyVolume(samples, tt.volume, tt.muted)
			if samples[0] != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, samples[0])
			}
		})
	}
}

func TestOtoVolumeClamp(t *testing.T) {
	o := NewOto(4)
	o.SetVolume(150)
	if o.GetVolume() != 100 {
		t.Errorf("expected volume clamped to 100, got %d", o.GetVolume())
	}
	o.SetVolume(-5)
	if o.GetVolume() != 0 {
		t.Errorf("expected volume clamped to 0, got %d", o.GetVolume())
	}
	o.SetMuted(true)
	if !o.IsMuted() {
		t.Error("expected muted")
	}
}
