// ABOUTME: MP3 stream decoder
// ABOUTME: Reads MP3 files as interleaved 16-bit stereo samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/songbird-audio/voicechat-go/pkg/audio"
)

// MP3Stream decodes MP3 audio; go-mp3 always yields 16-bit stereo
type MP3Stream struct {
	decoder *mp3.Decoder
	closer  io.Closer
	buf     []byte
}

// NewMP3 creates a stream decoder reading from r. If r is an io.Closer it is
// closed by Close.
func NewMP3(r io.Reader) (*MP3Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	s := &MP3Stream{decoder: decoder}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// Format returns the decoded PCM format
func (s *MP3Stream) Format() audio.Format {
	return audio.Format{
		Codec:      "pcm",
		SampleRate: s.decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}
}

// Read fills pcm with interleaved stereo samples
func (s *MP3Stream) Read(pcm []int16) (int, error) {
	need := len(pcm) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.decoder, buf)
	samples := n / 2
	for i := 0; i < samples; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err == io.EOF && samples > 0 {
		err = nil
	}
	if err != nil && err != io.EOF {
		return samples, fmt.Errorf("mp3 decode error: %w", err)
	}
	return samples, err
}

// Close releases decoder resources
func (s *MP3Stream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
