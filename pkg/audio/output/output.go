// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for speaker sinks fed by the playback engine
package output

import "github.com/songbird-audio/voicechat-go/pkg/audio"

// Output represents a speaker that accepts device blocks
type Output interface {
	audio.BlockSink

	// Open initializes the output device for mono samples at sampleRate
	Open(sampleRate int) error

	// SetVolume sets the volume (0-100)
	SetVolume(volume int)

	// SetMuted sets mute state
	SetMuted(muted bool)

	// Close releases output resources
	Close() error
}
