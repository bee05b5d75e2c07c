// ABOUTME: Recording engine that encodes captured blocks into TX container files
// ABOUTME: Owns one open file at most and recovers its sequence number across restarts
package recorder

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
)

var (
	// ErrAlreadyRecording means StartRecording was called while recording
	ErrAlreadyRecording = errors.New("already recording")

	// ErrStorageUnavailable means the card is absent
	ErrStorageUnavailable = storage.ErrUnavailable

	// ErrStorageFull means the card has no room for the recording
	ErrStorageFull = storage.ErrFull

	// ErrFileCreate means the recording file could not be created
	ErrFileCreate = errors.New("recording file create failed")

	// ErrWriteFailed means encoding or writing a packet failed mid-recording
	ErrWriteFailed = errors.New("recording write failed")

	// ErrInvalidChannel means the channel has no directory
	ErrInvalidChannel = errors.New("invalid channel")
)

// SequenceStore persists the next TX sequence number
type SequenceStore interface {
	LoadSequence() (uint32, error)
	SaveSequence(seq uint32) error
}

// Config tunes the recording engine
type Config struct {
	MaxPacket int
	SyncEvery int
	Channels  int
	Sequence  SequenceStore
}

// Engine records one message at a time
type Engine struct {
	st    *storage.Storage
	codec *codec.Engine
	cfg   Config

	recording bool
	writer    *container.Writer
	path      string
	channel   int
	nextSeq   uint32
	packets   int
	bytes     int64
	lastErr   error

	packet [codec.MaxPacketSize]byte
}

// New prepares the card layout and recovers the next sequence number as
// the larger of the persisted counter and the highest TX file plus one.
func New(st *storage.Storage, c *codec.Engine, cfg Config) (*Engine, error) {
	if cfg.MaxPacket <= 0 {
		cfg.MaxPacket = codec.MaxPacketSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = storage.Channels
	}

	if !st.Available() {
		return nil, ErrStorageUnavailable
	}

	e := &Engine{
		st:      st,
		codec:   c,
		cfg:     cfg,
		nextSeq: 1,
	}

	if err := e.createDirectories(); err != nil {
		log.Printf("Warning: could not create directories: %v", err)
	}

	if err := e.recoverSequence(); err != nil {
		return nil, err
	}

	log.Printf("Recorder initialized, next seq: %d", e.nextSeq)
	return e, nil
}

func (e *Engine) createDirectories() error {
	if err := e.st.MkdirAll(storage.TXDir); err != nil {
		return err
	}
	for ch := 0; ch < e.cfg.Channels; ch++ {
		if err := e.st.MkdirAll(storage.RXDir(ch)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recoverSequence() error {
	highest, err := e.st.HighestSequence(storage.TXDir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", storage.TXDir, err)
	}
	if highest+1 > e.nextSeq {
		e.nextSeq = highest + 1
	}

	if e.cfg.Sequence != nil {
		persisted, err := e.cfg.Sequence.LoadSequence()
		if err != nil {
			log.Printf("Warning: could not load persisted sequence: %v", err)
		} else if persisted > e.nextSeq {
			e.nextSeq = persisted
		}
	}
	return nil
}

// StartRecording opens a new TX file for channel and resets the encoder
func (e *Engine) StartRecording(channel int) error {
	if e.recording {
		return ErrAlreadyRecording
	}
	if channel < 0 || channel >= e.cfg.Channels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if !e.st.Available() {
		e.lastErr = ErrStorageUnavailable
		return ErrStorageUnavailable
	}

	path, err := storage.TXPath(e.nextSeq, channel)
	if err != nil {
		e.lastErr = fmt.Errorf("%w: %w", ErrFileCreate, err)
		return e.lastErr
	}

	f, err := e.st.Create(path)
	if err != nil {
		e.lastErr = createError(err)
		log.Printf("Failed to create %s: %v", path, err)
		return e.lastErr
	}

	w, err := container.NewWriter(f, container.WriterOptions{
		MaxPacket: e.cfg.MaxPacket,
		SyncEvery: e.cfg.SyncEvery,
	})
	if err != nil {
		f.Close()
		e.lastErr = createError(err)
		return e.lastErr
	}

	if err := e.codec.ResetEncoder(); err != nil {
		w.Close()
		e.lastErr = err
		return err
	}

	e.writer = w
	e.path = path
	e.channel = channel
	e.packets = 0
	e.bytes = w.BytesWritten()
	e.recording = true

	log.Printf("Starting recording: %s", path)
	return nil
}

func createError(err error) error {
	if storage.IsFull(err) {
		return fmt.Errorf("%w: %w", ErrStorageFull, err)
	}
	if errors.Is(err, storage.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFileCreate, err)
}

// ProcessRecording drains every available block from src into the file.
// Returns true if any packet was written. On the first failure recording
// stops, the partial file is kept, and the error becomes the sticky LastError.
func (e *Engine) ProcessRecording(src audio.BlockSource) (bool, error) {
	if !e.recording || src == nil {
		return false, nil
	}

	processed := false

	for src.Available() > 0 {
		blk := src.Read()
		if blk == nil {
			break
		}
		_, err := e.codec.AddSamples(blk[:])
		src.Release()
		if err != nil {
			return false, e.fail(err)
		}

		for e.codec.HasEncodedPacket() {
			n, err := e.codec.EncodedPacket(e.packet[:])
			if err != nil {
				return false, e.fail(err)
			}
			if n == 0 {
				break
			}
			if err := e.writer.WritePacket(e.packet[:n]); err != nil {
				return false, e.fail(err)
			}
			e.packets = e.writer.Packets()
			e.bytes = e.writer.BytesWritten()
			processed = true
		}
	}

	return processed, nil
}

func (e *Engine) fail(err error) error {
	if storage.IsFull(err) {
		err = fmt.Errorf("%w: %w: %w", ErrWriteFailed, ErrStorageFull, err)
	} else {
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	log.Printf("Recording aborted: %v", err)
	e.lastErr = err
	e.StopRecording()
	return err
}

// StopRecording closes the file and advances the sequence number.
// Returns false if not recording.
func (e *Engine) StopRecording() bool {
	if !e.recording {
		return false
	}
	e.recording = false

	if err := e.writer.Close(); err != nil {
		log.Printf("Warning: closing %s: %v", e.path, err)
		if e.lastErr == nil {
			e.lastErr = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	e.packets = e.writer.Packets()
	e.bytes = e.writer.BytesWritten()
	e.writer = nil

	e.nextSeq++
	if e.cfg.Sequence != nil {
		if err := e.cfg.Sequence.SaveSequence(e.nextSeq); err != nil {
			log.Printf("Warning: could not persist sequence: %v", err)
		}
	}

	log.Printf("Recording saved: %s", e.path)
	log.Printf("  Duration: %v", e.Duration())
	log.Printf("  Size: %d bytes", e.bytes)
	log.Printf("  Packets: %d", e.packets)

	return true
}

// IsRecording reports whether a file is open
func (e *Engine) IsRecording() bool {
	return e.recording
}

// CurrentPath returns the file being recorded, or the last one finished
func (e *Engine) CurrentPath() string {
	return e.path
}

// CurrentChannel returns the channel of the current or last recording
func (e *Engine) CurrentChannel() int {
	return e.channel
}

// NextSequence returns the sequence the next recording will use
func (e *Engine) NextSequence() uint32 {
	return e.nextSeq
}

// PacketCount returns packets written to the current or last recording
func (e *Engine) PacketCount() int {
	return e.packets
}

// BytesWritten returns the size of the current or last recording
func (e *Engine) BytesWritten() int64 {
	return e.bytes
}

// Duration returns the recorded audio time
func (e *Engine) Duration() time.Duration {
	return codec.Duration(e.packets)
}

// LastError returns the sticky failure, if any
func (e *Engine) LastError() error {
	return e.lastErr
}

// ClearError drops the sticky failure
func (e *Engine) ClearError() {
	e.lastErr = nil
}
