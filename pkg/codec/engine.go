// ABOUTME: Codec engine with sample accumulator, pending packet ring and resamplers
// ABOUTME: Encodes device blocks to packets and decodes packets to device samples
package codec

import (
	"fmt"
	"log"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/audio/decode"
	"github.com/songbird-audio/voicechat-go/pkg/audio/encode"
	"github.com/songbird-audio/voicechat-go/pkg/audio/resample"
)

type packet struct {
	data [MaxPacketSize]byte
	n    int
}

// Engine owns the encoder, decoder and every buffer between them
type Engine struct {
	enc FrameEncoder
	dec FrameDecoder

	down *resample.Resampler
	up   *resample.Resampler

	acc      [AccumulatorSize]int16
	accCount int
	frame    [FrameSamples]int16
	decoded  [FrameSamples]int16

	pending [PendingPackets]packet
	head    int
	count   int

	stats Stats
}

// New creates a codec engine. Missing frame codecs default to Opus.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		enc:  cfg.Encoder,
		dec:  cfg.Decoder,
		down: resample.New(audio.DeviceSampleRate, SampleRate),
		up:   resample.New(SampleRate, audio.DeviceSampleRate),
	}

	oc := opusConfig(cfg)
	if e.enc == nil {
		enc, err := encode.NewOpus(oc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInit, err)
		}
		e.enc = enc
	}

	if e.dec == nil {
		dec, err := decode.NewOpus(audio.Format{
			Codec:      "opus",
			SampleRate: SampleRate,
			Channels:   1,
			BitDepth:   16,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInit, err)
		}
		e.dec = dec
	}

	log.Printf("Codec initialized: %d Hz, %d bps, frame %v (%d samples)",
		SampleRate, oc.Bitrate, FrameDuration, FrameSamples)

	return e, nil
}

// opusConfig overlays the non-zero settings of cfg on the voice defaults
func opusConfig(cfg Config) encode.OpusConfig {
	oc := encode.DefaultOpusConfig()
	oc.Bitrate = DefaultBitrate
	oc.Complexity = DefaultComplexity
	if cfg.Bitrate > 0 {
		oc.Bitrate = cfg.Bitrate
	}
	if cfg.Complexity > 0 {
		oc.Complexity = cfg.Complexity
	}
	oc.DTX = cfg.DTX
	return oc
}

// AddSamples appends device samples and encodes every complete frame.
// Input larger than the free accumulator space is taken in pieces.
// Returns the number of packets produced by this call.
func (e *Engine) AddSamples(samples []int16) (int, error) {
	produced := 0

	for len(samples) > 0 {
		n := copy(e.acc[e.accCount:], samples)
		e.accCount += n
		samples = samples[n:]

		for e.accCount >= EncodeInputSamples {
			err := e.encodeFrame()

			remaining := e.accCount - EncodeInputSamples
			copy(e.acc[:remaining], e.acc[EncodeInputSamples:e.accCount])
			e.accCount = remaining

			if err != nil {
				e.stats.LastError = err
				return produced, err
			}
			produced++
		}
	}

	return produced, nil
}

func (e *Engine) encodeFrame() error {
	e.down.Resample(e.acc[:EncodeInputSamples], e.frame[:])

	if e.count == PendingPackets {
		return ErrPacketBacklog
	}

	slot := &e.pending[(e.head+e.count)%PendingPackets]
	n, err := e.enc.Encode(e.frame[:], slot.data[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if n <= 0 || n > MaxPacketSize {
		return fmt.Errorf("%w: packet size %d", ErrEncode, n)
	}

	slot.n = n
	e.count++
	e.stats.Encoded++
	return nil
}

// HasEncodedPacket reports whether a packet is waiting
func (e *Engine) HasEncodedPacket() bool {
	return e.count > 0
}

// PendingCount returns the number of waiting packets
func (e *Engine) PendingCount() int {
	return e.count
}

// EncodedPacket copies the oldest waiting packet into dst.
// Returns 0 with no error when nothing is ready; ErrShortBuffer leaves the
// packet queued.
func (e *Engine) EncodedPacket(dst []byte) (int, error) {
	if e.count == 0 {
		return 0, nil
	}

	p := &e.pending[e.head]
	if len(dst) < p.n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, p.n, len(dst))
	}

	n := copy(dst, p.data[:p.n])
	e.head = (e.head + 1) % PendingPackets
	e.count--
	return n, nil
}

// Decode decompresses one packet and upsamples it into dst.
// Returns the number of device samples written.
func (e *Engine) Decode(pkt []byte, dst []int16) (int, error) {
	if len(pkt) == 0 || len(pkt) > MaxPacketSize {
		err := fmt.Errorf("%w: packet size %d", ErrDecode, len(pkt))
		e.stats.LastError = err
		return 0, err
	}

	n, err := e.dec.Decode(pkt, e.decoded[:])
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDecode, err)
		e.stats.LastError = err
		return 0, err
	}
	if n > FrameSamples {
		n = FrameSamples
	}

	e.stats.Decoded++
	return e.up.Resample(e.decoded[:n], dst), nil
}

// ResetEncoder drops buffered samples, waiting packets and encoder state
// so one recording never bleeds into the next.
func (e *Engine) ResetEncoder() error {
	e.accCount = 0
	e.head = 0
	e.count = 0
	e.down.Reset()

	if err := e.enc.Reset(); err != nil {
		err = fmt.Errorf("%w: reset: %v", ErrInit, err)
		e.stats.LastError = err
		return err
	}
	return nil
}

// ResetDecoder clears the carried upsampling sample
func (e *Engine) ResetDecoder() {
	e.up.Reset()
}

// Buffered returns the number of device samples waiting for a full frame
func (e *Engine) Buffered() int {
	return e.accCount
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return e.stats
}

// LastError returns the most recent failure, if any
func (e *Engine) LastError() error {
	return e.stats.LastError
}
