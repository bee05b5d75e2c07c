// ABOUTME: Device control loop tying recording, playback and the bridge link together
// ABOUTME: Tick services every engine in turn without blocking
package device

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/playback"
	"github.com/songbird-audio/voicechat-go/pkg/recorder"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

const (
	// SwitchDisplay is how long a channel change stays on screen
	SwitchDisplay = 800 * time.Millisecond

	// StorageCheckEvery bounds how often card usage is measured
	StorageCheckEvery = time.Second

	commandQueue = 16
)

// Preferences persists user-facing settings
type Preferences interface {
	SetChannel(ch int) error
	SetMuted(muted bool) error
}

// Config describes the device
type Config struct {
	Name     string
	Channels int
	Channel  int
	Muted    bool
	AutoPlay bool

	Codec     codec.Config
	SyncEvery int
	Liveness  time.Duration

	Sequence    recorder.SequenceStore
	Preferences Preferences

	Now func() time.Time
}

// Device is the voice messaging appliance
type Device struct {
	cfg  Config
	st   *storage.Storage
	mic  audio.BlockSource
	spk  audio.BlockSink
	now  func() time.Time
	name string

	codec *codec.Engine
	rec   *recorder.Engine
	play  *playback.Engine
	link  *transport.Protocol

	commands chan Command

	channel     int
	muted       bool
	lastErr     error
	switchUntil time.Time
	storageStat StorageStatus
	storageAt   time.Time
	connected   bool
	users       []string

	recordingsSent    uint64
	recordingFailures uint64
	sendFailures      uint64
	ticks             uint64

	mu     sync.Mutex
	status Status
	stats  Stats
}

// New builds the engines on st and the link medium m. mic supplies captured
// blocks and spk accepts decoded blocks.
func New(st *storage.Storage, m transport.Medium, mic audio.BlockSource, spk audio.BlockSink, cfg Config) (*Device, error) {
	if cfg.Channels <= 0 || cfg.Channels > storage.Channels {
		cfg.Channels = storage.Channels
	}
	if cfg.Channel < 0 || cfg.Channel >= cfg.Channels {
		cfg.Channel = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SyncEvery <= 0 {
		cfg.SyncEvery = container.DefaultSyncEvery
	}

	c, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	rec, err := recorder.New(st, c, recorder.Config{
		SyncEvery: cfg.SyncEvery,
		Channels:  cfg.Channels,
		Sequence:  cfg.Sequence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	d := &Device{
		cfg:      cfg,
		st:       st,
		mic:      mic,
		spk:      spk,
		now:      cfg.Now,
		name:     cfg.Name,
		codec:    c,
		rec:      rec,
		play:     playback.New(st, c, playback.Config{Channels: cfg.Channels}),
		link:     transport.New(m, st, transport.Config{Channels: cfg.Channels, Liveness: cfg.Liveness, Now: cfg.Now}),
		commands: make(chan Command, commandQueue),
		channel:  cfg.Channel,
		muted:    cfg.Muted,
	}

	d.applyMute()
	if err := d.play.LoadChannelQueue(d.channel); err != nil {
		log.Printf("Warning: could not load channel %d: %v", d.channel+1, err)
	}
	d.checkStorage(true)
	d.publish()

	log.Printf("Device %q ready on channel %d", d.name, d.channel+1)
	return d, nil
}

// Link exposes the transport for log forwarding
func (d *Device) Link() *transport.Protocol {
	return d.link
}

// Tick runs one pass of the control loop
func (d *Device) Tick() {
	d.ticks++

drain:
	for i := 0; i < commandQueue; i++ {
		select {
		case cmd := <-d.commands:
			d.handle(cmd)
		default:
			break drain
		}
	}

	d.serviceLink()
	d.serviceRecording()
	d.servicePlayback()
	d.checkStorage(false)
	d.publish()
}

func (d *Device) serviceLink() {
	if d.link.ProcessIncoming() {
		rx, ok := d.link.ReceivedFile()
		d.link.ClearReceivedFile()
		if ok {
			log.Printf("New message on channel %d from %s", rx.Channel+1, senderName(rx.Sender))
			if rx.Channel == d.channel {
				d.maybeAutoPlay()
			}
		}
	}

	connected := d.link.IsConnected()
	if connected != d.connected {
		d.connected = connected
		if connected {
			log.Printf("Bridge connected")
		} else {
			log.Printf("Bridge connection lost")
		}
	}

	roster := d.link.Roster()
	if roster.Changed() {
		d.users = roster.Users()
		roster.ClearChanged()
	}
}

func (d *Device) serviceRecording() {
	if !d.rec.IsRecording() {
		// the capture queue keeps running while idle
		for d.mic != nil && d.mic.Available() > 0 {
			d.mic.Read()
			d.mic.Release()
		}
		return
	}

	if _, err := d.rec.ProcessRecording(d.mic); err != nil {
		d.recordingFailures++
		d.lastErr = err
	}
}

func (d *Device) servicePlayback() {
	if d.play.IsPlaying() && d.spk != nil {
		d.play.ProcessPlayback(d.spk)
	}
}

func (d *Device) maybeAutoPlay() {
	if !d.cfg.AutoPlay || d.muted || d.rec.IsRecording() || d.play.State() != playback.StateIdle {
		return
	}
	d.playChannel()
}

// playChannel reloads the current channel's queue and starts from the oldest
func (d *Device) playChannel() {
	if d.rec.IsRecording() {
		return
	}
	if err := d.play.LoadChannelQueue(d.channel); err != nil {
		log.Printf("Failed to load channel %d: %v", d.channel+1, err)
		return
	}
	d.play.StartPlayback()
}

// PressTalk starts recording on the current channel
func (d *Device) PressTalk() {
	if d.rec.IsRecording() {
		return
	}
	d.play.StopPlayback()
	d.rec.ClearError()

	if err := d.rec.StartRecording(d.channel); err != nil {
		log.Printf("Cannot record: %v", err)
		d.recordingFailures++
		d.lastErr = err
		d.checkStorage(true)
	}
}

// ReleaseTalk finishes the recording and sends it to the bridge
func (d *Device) ReleaseTalk() {
	if !d.rec.IsRecording() {
		return
	}
	// flush whatever the microphone already captured
	if _, err := d.rec.ProcessRecording(d.mic); err != nil {
		d.recordingFailures++
		d.lastErr = err
		return
	}
	d.rec.StopRecording()

	if err := d.rec.LastError(); err != nil {
		d.recordingFailures++
		d.lastErr = err
		return
	}
	if d.rec.PacketCount() == 0 {
		log.Printf("Recording too short, not sending")
		return
	}

	if err := d.link.SendFile(d.rec.CurrentPath(), d.rec.CurrentChannel()); err != nil {
		log.Printf("Failed to send %s: %v", d.rec.CurrentPath(), err)
		d.sendFailures++
		return
	}
	d.recordingsSent++
}

// SwitchChannel moves by delta channels, wrapping around
func (d *Device) SwitchChannel(delta int) {
	if d.rec.IsRecording() {
		return
	}
	n := d.cfg.Channels
	d.channel = ((d.channel+delta)%n + n) % n
	d.switchUntil = d.now().Add(SwitchDisplay)

	if d.cfg.Preferences != nil {
		if err := d.cfg.Preferences.SetChannel(d.channel); err != nil {
			log.Printf("Warning: could not persist channel: %v", err)
		}
	}

	if err := d.play.LoadChannelQueue(d.channel); err != nil {
		log.Printf("Failed to load channel %d: %v", d.channel+1, err)
	}
	log.Printf("Switched to channel %d (%d messages)", d.channel+1, d.play.QueuedCount())
	d.maybeAutoPlay()
}

// Skip abandons the current message
func (d *Device) Skip() {
	if d.play.IsPlaying() || d.play.IsPaused() {
		d.play.SkipToNext()
	}
}

// TogglePause pauses or resumes playback
func (d *Device) TogglePause() {
	if d.play.IsPaused() {
		d.play.ResumePlayback()
	} else {
		d.play.PausePlayback()
	}
}

// SetMuted silences the speaker and suppresses auto-play
func (d *Device) SetMuted(muted bool) {
	if muted == d.muted {
		return
	}
	d.muted = muted
	if muted {
		d.play.StopPlayback()
	}
	d.applyMute()

	if d.cfg.Preferences != nil {
		if err := d.cfg.Preferences.SetMuted(muted); err != nil {
			log.Printf("Warning: could not persist mute: %v", err)
		}
	}
	log.Printf("Muted: %v", muted)
}

func (d *Device) applyMute() {
	if m, ok := d.spk.(interface{ SetMuted(bool) }); ok {
		m.SetMuted(d.muted)
	}
}

func (d *Device) checkStorage(force bool) {
	now := d.now()
	if !force && now.Sub(d.storageAt) < StorageCheckEvery {
		return
	}
	d.storageAt = now

	switch {
	case !d.st.Available():
		d.storageStat = StorageAbsent
	case d.st.Full():
		d.storageStat = StorageFull
	default:
		d.storageStat = StorageOK
	}
}

func (d *Device) mode() Mode {
	switch {
	case d.rec.IsRecording():
		return ModeRecording
	case d.play.IsPlaying():
		return ModePlaying
	case d.play.IsPaused():
		return ModePaused
	case d.lastErr != nil || d.storageStat != StorageOK:
		return ModeError
	case !d.connected:
		return ModeDisconnected
	default:
		return ModeIdle
	}
}

func (d *Device) publish() {
	s := Status{
		Name:         d.name,
		Mode:         d.mode(),
		Channel:      d.channel,
		Channels:     d.cfg.Channels,
		Connected:    d.connected,
		Storage:      d.storageStat,
		Muted:        d.muted,
		Queued:       d.play.QueuedCount(),
		Switching:    d.now().Before(d.switchUntil),
		Recorded:     d.rec.Duration(),
		Position:     d.play.Position(),
		FileDuration: d.play.FileDuration(),
		Sender:       d.play.Sender(),
		Users:        d.users,
	}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}

	cs := d.codec.Stats()
	st := Stats{
		Link:              d.link.Stats(),
		Playback:          d.play.Stats(),
		PacketsEncoded:    cs.Encoded,
		PacketsDecoded:    cs.Decoded,
		RecordingsSent:    d.recordingsSent,
		RecordingFailures: d.recordingFailures,
		SendFailures:      d.sendFailures,
		MicOverruns:       d.micOverruns(),
		Users:             len(d.users),
		Connected:         d.connected,
		Ticks:             d.ticks,
	}

	d.mu.Lock()
	d.status = s
	d.stats = st
	d.mu.Unlock()
}

// Status returns the latest snapshot; safe from any goroutine
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Stats returns the latest counters; safe from any goroutine
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) micOverruns() uint64 {
	if o, ok := d.mic.(interface{ Dropped() uint64 }); ok {
		return o.Dropped()
	}
	return 0
}

func senderName(s string) string {
	if s == "" {
		return storage.UnknownSender
	}
	return s
}
