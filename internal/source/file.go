// ABOUTME: Generator that plays an MP3, FLAC or WAV file as microphone input
// ABOUTME: Downmixes to mono and resamples to the device rate, optionally looping
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/audio/decode"
	"github.com/songbird-audio/voicechat-go/pkg/audio/resample"
)

// ErrUnsupported means the file extension has no decoder
var ErrUnsupported = errors.New("unsupported audio file")

const readFrames = 1024

// Opener returns a fresh stream positioned at the start
type Opener func() (decode.Stream, error)

// File feeds a decoded stream as device-rate mono audio
type File struct {
	open   Opener
	loop   bool
	stream decode.Stream
	format audio.Format
	rs     *resample.Resampler

	interleaved []int16
	mono        []int16
	resampled   []int16
	pending     []int16
	ended       bool
	decoded     int
}

// OpenFile picks a decoder from the file extension
func OpenFile(path string, loop bool) (*File, error) {
	var opener Opener
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		opener = func() (decode.Stream, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			s, err := decode.NewMP3(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return s, nil
		}
	case ".flac":
		opener = func() (decode.Stream, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			s, err := decode.NewFLAC(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return s, nil
		}
	case ".wav":
		opener = func() (decode.Stream, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			s, err := decode.NewWAV(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return s, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return NewFile(opener, loop)
}

// NewFile opens the first stream from open
func NewFile(open Opener, loop bool) (*File, error) {
	f := &File{open: open, loop: loop}
	if err := f.reopen(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) reopen() error {
	if f.stream != nil {
		f.stream.Close()
		f.stream = nil
	}
	s, err := f.open()
	if err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	format := s.Format()
	if format.Channels < 1 || format.SampleRate < 1 {
		s.Close()
		return fmt.Errorf("invalid source format: %+v", format)
	}

	f.stream = s
	f.format = format
	f.decoded = 0
	f.rs = resample.New(format.SampleRate, audio.DeviceSampleRate)
	f.interleaved = make([]int16, readFrames*format.Channels)
	f.mono = make([]int16, readFrames)
	f.resampled = make([]int16, f.rs.OutputSamples(readFrames)+1)
	return nil
}

// Format returns the format of the underlying stream
func (f *File) Format() audio.Format {
	return f.format
}

// Fill writes the next block; after the end of a non-looping file it writes silence
func (f *File) Fill(blk *audio.Block) error {
	for len(f.pending) < len(blk) && !f.ended {
		if err := f.decodeMore(); err != nil {
			return err
		}
	}

	n := copy(blk[:], f.pending)
	for i := n; i < len(blk); i++ {
		blk[i] = 0
	}
	f.pending = f.pending[n:]
	return nil
}

func (f *File) decodeMore() error {
	n, err := f.stream.Read(f.interleaved)
	if n > 0 {
		f.decoded += n
		frames := audio.Downmix(f.interleaved[:n], f.format.Channels, f.mono)
		out := f.rs.Resample(f.mono[:frames], f.resampled)
		f.pending = append(f.pending, f.resampled[:out]...)
	}

	if err == io.EOF || (err == nil && n == 0) {
		if !f.loop {
			f.ended = true
			return nil
		}
		if f.decoded == 0 {
			return errors.New("audio source is empty")
		}
		return f.reopen()
	}
	return err
}

// Ended reports whether a non-looping file has been fully delivered
func (f *File) Ended() bool {
	return f.ended && len(f.pending) == 0
}

// Close releases the stream
func (f *File) Close() error {
	if f.stream == nil {
		return nil
	}
	err := f.stream.Close()
	f.stream = nil
	return err
}
