// ABOUTME: Device side of the bridge link: receives files and presence, sends recordings and logs
// ABOUTME: Receiving is a non-blocking byte-at-a-time state machine driven from the control tick
package transport

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/storage"
)

// Medium is the byte stream to the bridge. Available and ReadByte must not
// block; Write may be called from any goroutine.
type Medium interface {
	io.Writer
	Available() int
	ReadByte() (byte, error)
}

// Config tunes the protocol
type Config struct {
	// Channels is the number of valid audio selectors
	Channels int

	// Liveness is how long the link counts as connected after the last byte
	Liveness time.Duration

	// Now returns the current time; defaults to time.Now
	Now func() time.Time
}

// Received describes the last completed incoming file
type Received struct {
	Path    string
	Channel int
	Sender  string
	Size    int
}

// Stats counts link activity
type Stats struct {
	BytesReceived  uint64
	AudioFrames    uint64
	ControlFrames  uint64
	LogFrames      uint64
	Pings          uint64
	Desyncs        uint64
	InvalidFrames  uint64
	DiscardedFiles uint64
	FilesReceived  uint64
	FilesSent      uint64
	LogsSent       uint64
	BytesSent      uint64
}

// Protocol owns the receive state machine, the roster and the RX sequence
type Protocol struct {
	m   Medium
	st  *storage.Storage
	cfg Config

	state    rxState
	length   uint32
	lenPos   int
	selector byte
	msgType  MsgType
	userLen  int
	username []byte
	received uint32
	logBuf   []byte

	file     storage.File
	fileBuf  *bufio.Writer
	filePath string // final name; the data lands in its PartialPath first

	rxSeq        uint32
	ready        bool
	last         Received
	lastActivity time.Time

	roster Roster
	stats  Stats

	// held for a whole outgoing frame; LogWriter sends from other goroutines
	sendMu sync.Mutex

	logsSent  atomic.Uint64
	bytesSent atomic.Uint64
}

// New creates a protocol bound to m, recovering the RX sequence from
// files already on the card.
func New(m Medium, st *storage.Storage, cfg Config) *Protocol {
	if cfg.Channels <= 0 {
		cfg.Channels = storage.Channels
	}
	if cfg.Liveness <= 0 {
		cfg.Liveness = LivenessWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Protocol{
		m:        m,
		st:       st,
		cfg:      cfg,
		rxSeq:    1,
		username: make([]byte, 0, MaxUsername),
		logBuf:   make([]byte, 0, MaxLogLength),
	}
	p.recoverSequence()
	return p
}

func (p *Protocol) recoverSequence() {
	if !p.st.Available() {
		return
	}
	for ch := 0; ch < p.cfg.Channels; ch++ {
		p.removePartials(storage.RXDir(ch))
		highest, err := p.st.HighestSequence(storage.RXDir(ch))
		if err != nil {
			log.Printf("Warning: could not scan %s: %v", storage.RXDir(ch), err)
			continue
		}
		if highest+1 > p.rxSeq {
			p.rxSeq = highest + 1
		}
	}
}

// removePartials deletes messages left incomplete by an interrupted receive
func (p *Protocol) removePartials(dir string) {
	names, err := p.st.List(dir)
	if err != nil {
		return
	}
	for _, name := range names {
		if !storage.IsPartial(name) {
			continue
		}
		full := storage.Join(dir, name)
		if err := p.st.Remove(full); err != nil {
			log.Printf("Warning: could not remove stale %s: %v", full, err)
			continue
		}
		log.Printf("Removed incomplete message %s", full)
	}
}

// NextSequence returns the sequence number the next received file will use
func (p *Protocol) NextSequence() uint32 {
	return p.rxSeq
}

// Roster returns the users present on the bridge
func (p *Protocol) Roster() *Roster {
	return &p.roster
}

// ProcessIncoming consumes the bytes available on entry, stopping early
// when a file completes. Returns true if a file completed.
func (p *Protocol) ProcessIncoming() bool {
	n := p.m.Available()
	for i := 0; i < n; i++ {
		b, err := p.m.ReadByte()
		if err != nil {
			return false
		}
		p.lastActivity = p.cfg.Now()
		p.stats.BytesReceived++

		if p.step(b) {
			return true
		}
	}
	return false
}

// step advances the machine by one byte; true when a file completed
func (p *Protocol) step(b byte) bool {
	switch p.state {
	case stateWaitSync1:
		if b == SyncByte1 {
			p.state = stateWaitSync2
		}

	case stateWaitSync2:
		switch b {
		case SyncByte2:
			p.length = 0
			p.lenPos = 0
			p.state = stateReadLength
		case SyncByte1:
			// stay: the previous 0xAA was noise
		default:
			p.stats.Desyncs++
			p.state = stateWaitSync1
		}

	case stateReadLength:
		p.length |= uint32(b) << (8 * p.lenPos)
		p.lenPos++
		if p.lenPos == 4 {
			if p.length > MaxFrameLength {
				p.invalid("length %d", p.length)
				return false
			}
			p.state = stateReadSelector
		}

	case stateReadSelector:
		p.selector = b
		p.beginFrame()

	case stateReadMsgType:
		p.msgType = MsgType(b)
		switch p.msgType {
		case MsgJoin, MsgPart:
			p.state = stateReadUsernameLen
		case MsgPing:
			p.stats.Pings++
			p.reset()
		default:
			p.invalid("control message 0x%02X", b)
		}

	case stateReadUsernameLen:
		p.userLen = int(b)
		p.username = p.username[:0]
		switch {
		case p.userLen > MaxUsername:
			p.invalid("username length %d", p.userLen)
		case p.userLen > 0:
			p.state = stateReadUsername
		case p.selector == SelectorControl:
			p.invalid("empty username in %s", p.msgType)
		default:
			p.beginFile()
		}

	case stateReadUsername:
		p.username = append(p.username, b)
		if len(p.username) == p.userLen {
			if p.selector == SelectorControl {
				p.handleControl()
			} else {
				p.beginFile()
			}
		}

	case stateReadData:
		p.received++
		if err := p.fileBuf.WriteByte(b); err != nil {
			log.Printf("Write error on %s: %v", p.filePath, err)
			p.abortFile()
			if p.received >= p.length {
				p.reset()
			}
			return false
		}
		if p.received >= p.length {
			return p.finishFile()
		}

	case stateDiscardData:
		p.received++
		if p.received >= p.length {
			p.reset()
		}

	case stateReadLog:
		p.logBuf = append(p.logBuf, b)
		if uint32(len(p.logBuf)) >= p.length {
			p.stats.LogFrames++
			log.Printf("Bridge: %s", p.logBuf)
			p.reset()
		}
	}
	return false
}

func (p *Protocol) beginFrame() {
	switch {
	case p.selector == SelectorControl:
		if p.length != 0 {
			p.invalid("control frame with length %d", p.length)
			return
		}
		p.stats.ControlFrames++
		p.state = stateReadMsgType

	case p.length == 0:
		p.invalid("empty frame on selector 0x%02X", p.selector)

	case p.selector == SelectorLog:
		if p.length > MaxLogLength {
			p.invalid("log frame length %d", p.length)
			return
		}
		p.logBuf = p.logBuf[:0]
		p.state = stateReadLog

	default:
		p.stats.AudioFrames++
		p.state = stateReadUsernameLen
	}
}

func (p *Protocol) handleControl() {
	name := string(p.username)
	switch p.msgType {
	case MsgJoin:
		if p.roster.Join(name) {
			log.Printf("User joined: %s", name)
		}
	case MsgPart:
		if p.roster.Part(name) {
			log.Printf("User left: %s", name)
		}
	}
	p.reset()
}

// beginFile opens the RX file for the current audio frame, or switches to
// discarding its payload when the channel is invalid or the card refuses.
func (p *Protocol) beginFile() {
	p.received = 0
	p.state = stateDiscardData

	channel := int(p.selector)
	if channel >= p.cfg.Channels {
		log.Printf("Discarding %d bytes for invalid channel %d", p.length, channel)
		p.stats.DiscardedFiles++
		return
	}

	path, err := storage.RXPath(channel, p.rxSeq, string(p.username))
	if err == nil {
		if mkErr := p.st.MkdirAll(storage.RXDir(channel)); mkErr != nil {
			err = mkErr
		}
	}
	var f storage.File
	if err == nil {
		f, err = p.st.Create(storage.PartialPath(path))
	}
	if err != nil {
		log.Printf("Failed to create RX file, discarding %d bytes: %v", p.length, err)
		p.stats.DiscardedFiles++
		return
	}

	p.rxSeq++
	p.file = f
	p.fileBuf = bufio.NewWriterSize(f, ChunkSize)
	p.filePath = path
	p.state = stateReadData
	log.Printf("Receiving %d bytes on channel %d into %s", p.length, channel+1, path)
}

// abortFile drops a file that failed mid-write; remaining bytes are still
// consumed so framing stays aligned.
func (p *Protocol) abortFile() {
	p.closeFile()
	partial := storage.PartialPath(p.filePath)
	if err := p.st.Remove(partial); err != nil {
		log.Printf("Warning: could not remove partial %s: %v", partial, err)
	}
	p.stats.DiscardedFiles++
	p.state = stateDiscardData
}

func (p *Protocol) finishFile() bool {
	err := p.closeFile()
	path := p.filePath
	partial := storage.PartialPath(path)
	p.reset()
	if err == nil {
		err = p.st.Rename(partial, path)
	}
	if err != nil {
		log.Printf("Failed to finish %s: %v", path, err)
		if rmErr := p.st.Remove(partial); rmErr != nil {
			log.Printf("Warning: could not remove partial %s: %v", partial, rmErr)
		}
		p.stats.DiscardedFiles++
		return false
	}

	p.last = Received{
		Path:    path,
		Channel: int(p.selector),
		Sender:  string(p.username),
		Size:    int(p.length),
	}
	p.ready = true
	p.stats.FilesReceived++
	log.Printf("Received %s (%d bytes)", path, p.length)
	return true
}

func (p *Protocol) closeFile() error {
	if p.file == nil {
		return nil
	}
	var err error
	if p.fileBuf != nil {
		err = p.fileBuf.Flush()
	}
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	p.file = nil
	p.fileBuf = nil
	return err
}

func (p *Protocol) invalid(format string, args ...interface{}) {
	p.stats.InvalidFrames++
	log.Printf("Invalid frame: %s", fmt.Sprintf(format, args...))
	p.reset()
}

// reset returns to sync search; selector and username survive until the
// next header so a completed file can still be described.
func (p *Protocol) reset() {
	p.state = stateWaitSync1
	p.lenPos = 0
	p.received = 0
}

// ReceivedFile returns the last completed file while its flag is set
func (p *Protocol) ReceivedFile() (Received, bool) {
	return p.last, p.ready
}

// ClearReceivedFile acknowledges the last completed file
func (p *Protocol) ClearReceivedFile() {
	p.ready = false
}

// IsConnected reports whether any byte arrived within the liveness window
func (p *Protocol) IsConnected() bool {
	if p.lastActivity.IsZero() {
		return false
	}
	return p.cfg.Now().Sub(p.lastActivity) < p.cfg.Liveness
}

// LastActivity returns when the last byte arrived
func (p *Protocol) LastActivity() time.Time {
	return p.lastActivity
}

// SendFile streams a container file to the bridge on channel
func (p *Protocol) SendFile(path string, channel int) error {
	if channel < 0 || channel >= p.cfg.Channels {
		return fmt.Errorf("%w: channel %d", ErrSelector, channel)
	}

	info, err := p.st.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return fmt.Errorf("send %s: empty file", path)
	}
	if size > MaxFrameLength {
		return fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, path, size)
	}

	f, err := p.st.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := p.sendFrame(f, size, byte(channel), path); err != nil {
		return err
	}

	p.stats.FilesSent++
	log.Printf("Sent %s (%d bytes) on channel %d", path, size, channel+1)
	return nil
}

// sendFrame writes the header and file body without letting a log frame in between
func (p *Protocol) sendFrame(f io.Reader, size int64, selector byte, path string) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], uint32(size), selector)
	if err := p.write(hdr[:]); err != nil {
		return err
	}

	var chunk [ChunkSize]byte
	var sent int64
	for sent < size {
		n, err := f.Read(chunk[:])
		if n > 0 {
			if werr := p.write(chunk[:n]); werr != nil {
				return werr
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	if sent != size {
		return fmt.Errorf("send %s: short read %d of %d bytes", path, sent, size)
	}
	return nil
}

// SendLog sends a diagnostic line, truncated to MaxLogLength
func (p *Protocol) SendLog(msg string) error {
	if msg == "" {
		return nil
	}
	frame := AppendLogFrame(make([]byte, 0, HeaderSize+MaxLogLength), msg)
	p.sendMu.Lock()
	err := p.write(frame)
	p.sendMu.Unlock()
	if err != nil {
		return err
	}
	p.logsSent.Add(1)
	return nil
}

// SendLogf formats and sends a diagnostic line
func (p *Protocol) SendLogf(format string, args ...interface{}) error {
	return p.SendLog(fmt.Sprintf(format, args...))
}

// LogWriter returns a writer that forwards each line as a log frame.
// Send errors are dropped so it can sit behind the standard logger.
func (p *Protocol) LogWriter() io.Writer {
	return logWriter{p}
}

type logWriter struct{ p *Protocol }

func (w logWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		_ = w.p.SendLog(line)
	}
	return len(b), nil
}

func (p *Protocol) write(b []byte) error {
	n, err := p.m.Write(b)
	p.bytesSent.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the counters
func (p *Protocol) Stats() Stats {
	s := p.stats
	s.LogsSent = p.logsSent.Load()
	s.BytesSent = p.bytesSent.Load()
	return s
}
