// ABOUTME: WAV stream decoder
// ABOUTME: Parses RIFF chunks and converts the PCM data chunk with PCMDecoder
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// ErrNotWAV means the RIFF header or fmt chunk is missing or unsupported
var ErrNotWAV = errors.New("not a PCM wav stream")

const wavFormatPCM = 1

// WAVStream decodes 16 or 24-bit PCM WAV audio
type WAVStream struct {
	r         io.Reader
	closer    io.Closer
	format    audio.Format
	pcm       *PCMDecoder
	remaining int64
	buf       []byte
}

// NewWAV reads the header from r. If r is an io.Closer it is closed by Close.
func NewWAV(r io.Reader) (*WAVStream, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	s := &WAVStream{r: r}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}

	haveFormat := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			var f [16]byte
			if _, err := io.ReadFull(r, f[:]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
			if binary.LittleEndian.Uint16(f[0:2]) != wavFormatPCM {
				return nil, fmt.Errorf("%w: compressed format", ErrNotWAV)
			}
			s.format = audio.Format{
				Codec:      "pcm",
				Channels:   int(binary.LittleEndian.Uint16(f[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(f[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(f[14:16])),
			}
			if err := skip(r, size-16+size%2); err != nil {
				return nil, err
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			if s.format.Channels < 1 || s.format.SampleRate < 1 {
				return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrNotWAV, s.format.Channels, s.format.SampleRate)
			}
			pcm, err := NewPCM(s.format)
			if err != nil {
				return nil, err
			}
			s.pcm = pcm
			s.remaining = size
			return s, nil

		default:
			if err := skip(r, size+size%2); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	return nil
}

// Format returns the decoded PCM format
func (s *WAVStream) Format() audio.Format {
	f := s.format
	f.BitDepth = 16
	return f
}

// Read fills pcm with whole interleaved frames
func (s *WAVStream) Read(pcm []int16) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}

	channels := s.format.Channels
	width := s.format.BitDepth / 8
	frames := len(pcm) / channels
	need := int64(frames * channels * width)
	if need > s.remaining {
		need = s.remaining
	}
	need -= need % int64(channels*width)
	if need == 0 {
		s.remaining = 0
		return 0, io.EOF
	}

	if int64(cap(s.buf)) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.r, buf)
	s.remaining -= int64(n)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		s.remaining = 0
		err = nil
	}
	if err != nil {
		return 0, fmt.Errorf("wav read error: %w", err)
	}

	n -= n % (channels * width)
	got, derr := s.pcm.Decode(buf[:n], pcm)
	if derr != nil {
		return 0, derr
	}
	if got == 0 {
		return 0, io.EOF
	}
	return got * channels, nil
}

// Close releases decoder resources
func (s *WAVStream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
