// ABOUTME: Playback engine state machine over a per-channel file queue
// ABOUTME: Feeds decoded blocks with a capped loop so one tick stays bounded
package playback

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
)

const (
	// MaxQueue bounds the files loaded per channel
	MaxQueue = 100

	// FeedIterations caps feed-loop passes per ProcessPlayback call
	FeedIterations = 16
)

// ErrInvalidChannel means the channel has no directory
var ErrInvalidChannel = errors.New("invalid channel")

// State is the playback state
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes the playback engine
type Config struct {
	MaxPacket      int
	MaxQueue       int
	FeedIterations int
	Channels       int
}

// Stats counts playback outcomes
type Stats struct {
	Played       uint64 // files finished, cleanly or not
	Skipped      uint64 // files skipped by the user
	Deleted      uint64 // files removed for any reason
	Unopenable   uint64 // files rejected at open
	Corrupt      uint64 // files that ended on a bad packet
	DecodeErrors uint64
	Blocks       uint64 // blocks committed to the sink
}

// Engine plays one channel's queue at a time
type Engine struct {
	st    *storage.Storage
	codec *codec.Engine
	cfg   Config

	state   State
	channel int
	queue   []string
	index   int

	reader       *container.Reader
	sender       string
	totalPackets int
	played       int

	out      [codec.DecodeOutputSamples]int16
	outPos   int
	outCount int

	stats Stats
}

// New creates an idle playback engine
func New(st *storage.Storage, c *codec.Engine, cfg Config) *Engine {
	if cfg.MaxPacket <= 0 {
		cfg.MaxPacket = codec.MaxPacketSize
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = MaxQueue
	}
	if cfg.FeedIterations <= 0 {
		cfg.FeedIterations = FeedIterations
	}
	if cfg.Channels <= 0 {
		cfg.Channels = storage.Channels
	}

	return &Engine{
		st:    st,
		codec: c,
		cfg:   cfg,
		queue: make([]string, 0, cfg.MaxQueue),
	}
}

// LoadChannelQueue replaces the queue with the channel's messages, oldest
// sequence first. Any open file is closed and playback goes idle. A missing or empty
// directory yields an empty queue.
func (e *Engine) LoadChannelQueue(channel int) error {
	if channel < 0 || channel >= e.cfg.Channels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	e.StopPlayback()
	e.queue = e.queue[:0]
	e.index = 0
	e.channel = channel

	dir := storage.RXDir(channel)
	names, err := e.st.List(dir)
	if err != nil {
		return fmt.Errorf("load channel %d: %w", channel+1, err)
	}

	messages := names[:0]
	for _, name := range names {
		if storage.IsMessage(name) {
			messages = append(messages, name)
		}
	}
	storage.SortMessages(messages)

	for _, name := range messages {
		if len(e.queue) >= e.cfg.MaxQueue {
			break
		}
		e.queue = append(e.queue, storage.Join(dir, name))
	}

	if len(e.queue) == 0 {
		log.Printf("No messages in channel %d", channel+1)
	} else {
		log.Printf("Loaded %d messages for channel %d", len(e.queue), channel+1)
	}
	return nil
}

// StartPlayback opens the first playable queued file. Unopenable files are
// deleted and skipped. Returns false when nothing can be played.
func (e *Engine) StartPlayback() bool {
	if e.state != StateIdle {
		return e.state == StatePlaying
	}
	if !e.openPlayable() {
		return false
	}

	e.state = StatePlaying
	log.Printf("Starting playback: %s", e.CurrentFileName())
	return true
}

// openPlayable opens queue[index], deleting and advancing past bad files
func (e *Engine) openPlayable() bool {
	for e.index < len(e.queue) {
		err := e.openCurrent()
		if err == nil {
			return true
		}
		log.Printf("Failed to open %s: %v", e.queue[e.index], err)
		e.stats.Unopenable++
		e.deleteCurrent()
		e.index++
	}
	return false
}

func (e *Engine) openCurrent() error {
	e.closeCurrent()

	f, err := e.st.Open(e.queue[e.index])
	if err != nil {
		return err
	}

	r, err := container.Open(f, e.cfg.MaxPacket)
	if err != nil {
		f.Close()
		return err
	}

	e.reader = r
	e.totalPackets = r.PacketCount()
	e.played = 0
	e.outPos = 0
	e.outCount = 0
	e.sender = storage.SenderFromName(e.queue[e.index])
	e.codec.ResetDecoder()
	return nil
}

func (e *Engine) closeCurrent() {
	if e.reader != nil {
		e.reader.Close()
		e.reader = nil
	}
}

func (e *Engine) deleteCurrent() {
	e.closeCurrent()
	if e.index >= len(e.queue) {
		return
	}
	p := e.queue[e.index]
	if err := e.st.Remove(p); err != nil {
		log.Printf("Warning: could not delete %s: %v", p, err)
		return
	}
	e.stats.Deleted++
	log.Printf("Deleted: %s", p)
}

// ProcessPlayback feeds sink while it has room, for at most a fixed number
// of passes. Returns false when not playing, including when the queue
// has just run out.
func (e *Engine) ProcessPlayback(sink audio.BlockSink) bool {
	if e.state != StatePlaying || sink == nil {
		return false
	}

	for i := 0; i < e.cfg.FeedIterations && sink.Available() > 0; i++ {
		if e.outPos < e.outCount {
			buf := sink.Buffer()
			if buf == nil {
				break
			}
			n := copy(buf[:], e.out[e.outPos:e.outCount])
			for j := n; j < audio.BlockSamples; j++ {
				buf[j] = 0
			}
			sink.Commit()
			e.outPos += n
			e.stats.Blocks++
			continue
		}

		if !e.decodeNext() {
			e.stats.Played++
			if !e.advance() {
				return false
			}
		}
	}

	return true
}

// decodeNext buffers the next packet's samples; false at end of file or failure
func (e *Engine) decodeNext() bool {
	pkt, err := e.reader.Next()
	if err != nil {
		if err != io.EOF {
			if errors.Is(err, container.ErrCorrupt) {
				e.stats.Corrupt++
			}
			log.Printf("Playback read error in %s: %v", e.CurrentFileName(), err)
		}
		return false
	}

	n, err := e.codec.Decode(pkt, e.out[:])
	if err != nil || n == 0 {
		e.stats.DecodeErrors++
		log.Printf("Decode error in %s: %v", e.CurrentFileName(), err)
		return false
	}

	e.outCount = n
	e.outPos = 0
	e.played++
	return true
}

// advance deletes the current file and opens the next; false when the queue is exhausted
func (e *Engine) advance() bool {
	e.deleteCurrent()
	e.index++

	if !e.openPlayable() {
		e.StopPlayback()
		log.Printf("Channel %d queue finished", e.channel+1)
		return false
	}

	log.Printf("Next message: %s", e.CurrentFileName())
	return true
}

// PausePlayback pauses; only valid while playing
func (e *Engine) PausePlayback() bool {
	if e.state != StatePlaying {
		return false
	}
	e.state = StatePaused
	log.Printf("Playback paused")
	return true
}

// ResumePlayback resumes; only valid while paused
func (e *Engine) ResumePlayback() bool {
	if e.state != StatePaused {
		return false
	}
	e.state = StatePlaying
	log.Printf("Playback resumed")
	return true
}

// StopPlayback closes the current file without deleting it
func (e *Engine) StopPlayback() {
	wasActive := e.state != StateIdle
	e.closeCurrent()
	e.state = StateIdle
	e.outPos = 0
	e.outCount = 0
	e.played = 0
	if wasActive {
		log.Printf("Playback stopped")
	}
}

// SkipToNext deletes the current message and moves on. Returns true if
// another message is now playing.
func (e *Engine) SkipToNext() bool {
	if e.state == StateIdle || e.index >= len(e.queue) {
		return false
	}
	log.Printf("Skipping to next message")
	e.stats.Skipped++
	return e.advance()
}

// State returns the playback state
func (e *Engine) State() State {
	return e.state
}

// IsPlaying reports StatePlaying
func (e *Engine) IsPlaying() bool {
	return e.state == StatePlaying
}

// IsPaused reports StatePaused
func (e *Engine) IsPaused() bool {
	return e.state == StatePaused
}

// Channel returns the loaded channel
func (e *Engine) Channel() int {
	return e.channel
}

// QueuedCount returns the messages not yet finished, including the current one
func (e *Engine) QueuedCount() int {
	return len(e.queue) - e.index
}

// HasMessages reports whether anything is left to play
func (e *Engine) HasMessages() bool {
	return e.QueuedCount() > 0
}

// CurrentFileName returns the base name of the current message
func (e *Engine) CurrentFileName() string {
	if e.index >= len(e.queue) {
		return ""
	}
	return path.Base(e.queue[e.index])
}

// Sender returns the sender of the current message
func (e *Engine) Sender() string {
	if e.reader == nil {
		return ""
	}
	return e.sender
}

// Position returns the audio time decoded from the current message
func (e *Engine) Position() time.Duration {
	return codec.Duration(e.played)
}

// FileDuration returns the scanned length of the current message
func (e *Engine) FileDuration() time.Duration {
	if e.reader == nil {
		return 0
	}
	return codec.Duration(e.totalPackets)
}

// Stats returns the playback counters
func (e *Engine) Stats() Stats {
	return e.stats
}
