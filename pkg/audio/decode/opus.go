// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Opus packets to int16 samples
package decode

import (
	"fmt"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (*OpusDecoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
	}, nil
}

// Decode converts one Opus packet to int16 samples
func (d *OpusDecoder) Decode(data []byte, pcm []int16) (int, error) {
	n, err := d.decoder.Decode(data, pcm)
	if err != nil {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}
	return n, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
