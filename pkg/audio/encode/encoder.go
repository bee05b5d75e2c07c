// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for frame encoders
package encode

// Encoder compresses one PCM frame into one packet
type Encoder interface {
	// Encode compresses pcm into out and returns the packet length
	Encode(pcm []int16, out []byte) (int, error)

	// Reset drops inter-frame state so the next frame starts a new stream
	Reset() error

	// Close releases encoder resources
	Close() error
}
