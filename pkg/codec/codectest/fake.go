// ABOUTME: Deterministic frame codecs for tests that must not depend on libopus
// ABOUTME: Packets carry the frame's first sample so decode output is predictable
package codectest

import (
	"encoding/binary"
	"errors"

	"github.com/songbird-audio/voicechat-go/pkg/codec"
)

// ErrInjected is returned by fakes configured to fail
var ErrInjected = errors.New("injected codec failure")

// Encoder writes PacketSize-byte packets; the first two bytes hold frame[0]
type Encoder struct {
	PacketSize int
	FailAfter  int // fail every Encode once this many succeeded; 0 disables

	Frames int
	Resets int
}

// NewEncoder returns an encoder producing size-byte packets
func NewEncoder(size int) *Encoder {
	return &Encoder{PacketSize: size}
}

// Encode implements codec.FrameEncoder
func (e *Encoder) Encode(pcm []int16, out []byte) (int, error) {
	if e.FailAfter > 0 && e.Frames >= e.FailAfter {
		return 0, ErrInjected
	}
	size := e.PacketSize
	if size < 2 {
		size = 2
	}
	if len(out) < size {
		return 0, errors.New("fake encode: short buffer")
	}

	binary.LittleEndian.PutUint16(out, uint16(pcm[0]))
	for i := 2; i < size; i++ {
		out[i] = byte(e.Frames + i)
	}
	e.Frames++
	return size, nil
}

// Reset implements codec.FrameEncoder
func (e *Encoder) Reset() error {
	e.Resets++
	return nil
}

// Decoder fills a full frame with the sample stored in the packet
type Decoder struct {
	FailOn byte // packets starting with this byte fail when Fail is set
	Fail   bool

	Packets int
}

// NewDecoder returns a decoder that never fails
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode implements codec.FrameDecoder
func (d *Decoder) Decode(data []byte, pcm []int16) (int, error) {
	if d.Fail && len(data) > 0 && data[0] == d.FailOn {
		return 0, ErrInjected
	}
	var v int16
	if len(data) >= 2 {
		v = int16(binary.LittleEndian.Uint16(data))
	}
	n := codec.FrameSamples
	if n > len(pcm) {
		n = len(pcm)
	}
	for i := 0; i < n; i++ {
		pcm[i] = v
	}
	d.Packets++
	return n, nil
}

// New returns a codec engine backed by the fakes
func New(packetSize int) (*codec.Engine, *Encoder, *Decoder) {
	enc := NewEncoder(packetSize)
	dec := NewDecoder()
	e, err := codec.New(codec.Config{Encoder: enc, Decoder: dec})
	if err != nil {
		// unreachable: fakes never fail to initialize
		panic(err)
	}
	return e, enc, dec
}

// Packet builds a packet the fake decoder expands to sample
func Packet(sample int16, size int) []byte {
	if size < 2 {
		size = 2
	}
	p := make([]byte, size)
	binary.LittleEndian.PutUint16(p, uint16(sample))
	return p
}
