// ABOUTME: Codec constants, configuration, frame codec interfaces and errors
// ABOUTME: Shared by the engine and by the recorder and playback packages
package codec

import (
	"errors"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

const (
	// SampleRate is the codec sample rate in Hz (mono)
	SampleRate = 16000

	// FrameDuration is the audio length carried by one packet
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of codec samples per frame
	FrameSamples = SampleRate * 20 / 1000

	// EncodeInputSamples is the device samples consumed per encoded frame.
	// The extra sample gives the last interpolation point a right neighbour.
	EncodeInputSamples = FrameSamples*audio.DeviceSampleRate/SampleRate + 1

	// DecodeOutputSamples is the device samples produced per decoded frame
	DecodeOutputSamples = FrameSamples * audio.DeviceSampleRate / SampleRate

	// AccumulatorSize bounds buffered device samples
	AccumulatorSize = 1024

	// MaxPacketSize is the largest compressed packet
	MaxPacketSize = 256

	// PendingPackets is the capacity of the encoded packet queue
	PendingPackets = 4

	// DefaultBitrate is the voice bitrate in bits per second
	DefaultBitrate = 16000

	// DefaultComplexity balances quality and CPU
	DefaultComplexity = 5
)

var (
	// ErrInit means the frame encoder or decoder could not be created
	ErrInit = errors.New("codec init failed")

	// ErrEncode means a frame failed to compress
	ErrEncode = errors.New("codec encode failed")

	// ErrDecode means a packet failed to decompress
	ErrDecode = errors.New("codec decode failed")

	// ErrShortBuffer means the destination cannot hold the next packet
	ErrShortBuffer = errors.New("codec buffer too small")

	// ErrPacketBacklog means encoded packets were not drained in time
	ErrPacketBacklog = errors.New("codec packet backlog full")
)

// FrameEncoder compresses one FrameSamples frame into one packet
type FrameEncoder interface {
	Encode(pcm []int16, out []byte) (int, error)
	Reset() error
}

// FrameDecoder decompresses one packet into codec-rate samples
type FrameDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Config holds codec settings. Zero Bitrate or Complexity selects the
// default. Encoder and Decoder override the Opus implementations when set.
type Config struct {
	Bitrate    int  `yaml:"bitrate"`
	Complexity int  `yaml:"complexity"`
	DTX        bool `yaml:"dtx"`

	Encoder FrameEncoder `yaml:"-"`
	Decoder FrameDecoder `yaml:"-"`
}

// DefaultConfig returns the voice defaults
func DefaultConfig() Config {
	return Config{
		Bitrate:    DefaultBitrate,
		Complexity: DefaultComplexity,
	}
}

// Duration converts a packet count to playback time
func Duration(packets int) time.Duration {
	return time.Duration(packets) * FrameDuration
}

// Stats reports engine counters
type Stats struct {
	Encoded   uint64
	Decoded   uint64
	LastError error
}
