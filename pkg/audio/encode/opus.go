// ABOUTME: Opus voice encoder
// ABOUTME: Encodes 20 ms mono int16 frames to Opus packets tuned for speech
package encode

import (
	"fmt"
	"log"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusConfig holds the voice encoder tuning
type OpusConfig struct {
	SampleRate int
	Channels   int
	Bitrate    int  // bits per second
	Complexity int  // 0..10
	DTX        bool // discontinuous transmission for silence
}

// DefaultOpusConfig returns the speech settings used by the device
func DefaultOpusConfig() OpusConfig {
	return OpusConfig{
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    16000,
		Complexity: 5,
	}
}

// FrameSize returns the samples per channel in one 20 ms frame
func (c OpusConfig) FrameSize() int {
	return c.SampleRate / 50
}

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder *opus.Encoder
	config  OpusConfig
}

// NewOpus creates a new Opus encoder in VOIP mode
func NewOpus(config OpusConfig) (*OpusEncoder, error) {
	if config.Channels < 1 || config.Channels > 2 {
		return nil, fmt.Errorf("invalid channel count for Opus encoder: %d", config.Channels)
	}
	if config.Complexity < 0 {
		config.Complexity = 0
	}
	if config.Complexity > 10 {
		config.Complexity = 10
	}

	e := &OpusEncoder{config: config}
	if err := e.create(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *OpusEncoder) create() error {
	encoder, err := opus.NewEncoder(e.config.SampleRate, e.config.Channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if err := encoder.SetBitrate(e.config.Bitrate); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}
	if err := encoder.SetComplexity(e.config.Complexity); err != nil {
		log.Printf("Warning: Failed to set Opus complexity: %v", err)
	}
	if err := encoder.SetDTX(e.config.DTX); err != nil {
		log.Printf("Warning: Failed to set Opus DTX: %v", err)
	}

	e.encoder = encoder
	return nil
}

// Encode compresses one frame of pcm into out
func (e *OpusEncoder) Encode(pcm []int16, out []byte) (int, error) {
	want := e.config.FrameSize() * e.config.Channels
	if len(pcm) != want {
		return 0, fmt.Errorf("opus encode: frame has %d samples, want %d", len(pcm), want)
	}

	n, err := e.encoder.Encode(pcm, out)
	if err != nil {
		return 0, fmt.Errorf("opus encode failed: %w", err)
	}
	return n, nil
}

// Reset recreates the underlying encoder with the same settings
func (e *OpusEncoder) Reset() error {
	return e.create()
}

// SetBitrate changes the target bitrate
func (e *OpusEncoder) SetBitrate(bps int) error {
	if err := e.encoder.SetBitrate(bps); err != nil {
		return fmt.Errorf("set opus bitrate: %w", err)
	}
	e.config.Bitrate = bps
	log.Printf("Opus bitrate set to %d bps", bps)
	return nil
}

// SetComplexity changes the encoder complexity, clamped to 0..10
func (e *OpusEncoder) SetComplexity(complexity int) error {
	if complexity < 0 {
		complexity = 0
	}
	if complexity > 10 {
		complexity = 10
	}
	if err := e.encoder.SetComplexity(complexity); err != nil {
		return fmt.Errorf("set opus complexity: %w", err)
	}
	e.config.Complexity = complexity
	log.Printf("Opus complexity set to %d", complexity)
	return nil
}

// Format describes the PCM this encoder consumes
func (e *OpusEncoder) Format() audio.Format {
	return audio.Format{
		Codec:      "opus",
		SampleRate: e.config.SampleRate,
		Channels:   e.config.Channels,
		BitDepth:   16,
	}
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	// opus.Encoder doesn't have a Close method, nothing to do
	return nil
}
