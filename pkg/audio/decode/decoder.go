// ABOUTME: Decoder and Stream interface definitions
// ABOUTME: Common interfaces for packet decoders and file stream decoders
package decode

import "github.com/songbird-audio/voicechat-go/pkg/audio"

// Decoder decodes one encoded packet to PCM samples
type Decoder interface {
	// Decode writes decoded samples into pcm and returns samples per channel
	Decode(data []byte, pcm []int16) (int, error)

	// Close releases decoder resources
	Close() error
}

// Stream reads PCM from an encoded file
type Stream interface {
	// Format describes the interleaved samples returned by Read
	Format() audio.Format

	// Read fills pcm with interleaved samples; io.EOF at end of stream
	Read(pcm []int16) (int, error)

	// Close releases stream resources
	Close() error
}
