// ABOUTME: FLAC stream decoder
// ABOUTME: Reads FLAC files frame by frame as interleaved int16 samples
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// FLACStream decodes FLAC audio
type FLACStream struct {
	stream  *flac.Stream
	format  audio.Format
	pending []int16
}

// NewFLAC creates a stream decoder reading from r
func NewFLAC(r io.Reader) (*FLACStream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}

	return &FLACStream{
		stream: stream,
		format: audio.Format{
			Codec:      "pcm",
			SampleRate: int(stream.Info.SampleRate),
			Channels:   int(stream.Info.NChannels),
			BitDepth:   int(stream.Info.BitsPerSample),
		},
	}, nil
}

// Format returns the decoded PCM format
func (s *FLACStream) Format() audio.Format {
	return audio.Format{
		Codec:      "pcm",
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		BitDepth:   16,
	}
}

// Read fills pcm with interleaved samples, parsing frames as needed
func (s *FLACStream) Read(pcm []int16) (int, error) {
	written := 0
	for written < len(pcm) {
		if len(s.pending) == 0 {
			if err := s.parseFrame(); err != nil {
				if written > 0 && err == io.EOF {
					return written, nil
				}
				return written, err
			}
			continue
		}

		n := copy(pcm[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}
	return written, nil
}

func (s *FLACStream) parseFrame() error {
	frame, err := s.stream.ParseNext()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("flac decode error: %w", err)
	}

	channels := len(frame.Subframes)
	if channels == 0 {
		return nil
	}
	count := len(frame.Subframes[0].Samples)

	out := make([]int16, 0, count*channels)
	for i := 0; i < count; i++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, audio.SampleFromBits(frame.Subframes[ch].Samples[i], s.format.BitDepth))
		}
	}
	s.pending = out
	return nil
}

// Close releases decoder resources
func (s *FLACStream) Close() error {
	return s.stream.Close()
}
