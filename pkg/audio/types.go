// ABOUTME: Audio type definitions
// ABOUTME: Defines device audio constants, blocks and sample conversions
package audio

const (
	// DeviceSampleRate is the native rate of the capture and playback path
	DeviceSampleRate = 44100

	// BlockSamples is the number of mono samples in one device block
	BlockSamples = 128

	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Block is one device-native mono PCM buffer, produced or consumed once per tick
type Block [BlockSamples]int16

// Format describes a PCM stream that feeds or drains the device path
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Device is the format of every Block
var Device = Format{
	Codec:      "pcm",
	SampleRate: DeviceSampleRate,
	Channels:   1,
	BitDepth:   16,
}

// SampleToInt16 converts a 24-bit sample held in an int32 to int16
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFromBits normalizes a sample of the given bit depth to int16
func SampleFromBits(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return Clamp16(sample)
	case bitDepth > 16:
		return Clamp16(sample >> uint(bitDepth-16))
	default:
		return Clamp16(sample << uint(16-bitDepth))
	}
}

// Clamp16 saturates v to the int16 range
func Clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Downmix averages interleaved frames into mono int16 samples.
// Returns the number of mono samples written to out.
func Downmix(interleaved []int16, channels int, out []int16) int {
	if channels <= 1 {
		return copy(out, interleaved)
	}
	frames := len(interleaved) / channels
	if frames > len(out) {
		frames = len(out)
	}
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(interleaved[i*channels+ch])
		}
		out[i] = int16(sum / int32(channels))
	}
	return frames
}
