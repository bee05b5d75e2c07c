// ABOUTME: PCM audio decoder
// ABOUTME: Decodes little-endian 16-bit and 24-bit PCM bytes to int16 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
	channels int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	channels := format.Channels
	if channels < 1 {
		channels = 1
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
		channels: channels,
	}, nil
}

// Decode converts PCM bytes to int16 samples; trailing partial samples are ignored
func (d *PCMDecoder) Decode(data []byte, pcm []int16) (int, error) {
	width := d.bitDepth / 8
	n := len(data) / width
	if n > len(pcm) {
		return 0, fmt.Errorf("pcm decode: %d samples do not fit in %d", n, len(pcm))
	}

	for i := 0; i < n; i++ {
		if d.bitDepth == 24 {
			// 24-bit PCM: sign-extend 3 bytes then drop the low byte
			b := data[i*3:]
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			pcm[i] = audio.SampleToInt16(v)
		} else {
			pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
	}

	return n / d.channels, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
