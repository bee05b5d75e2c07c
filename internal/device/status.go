// ABOUTME: Device status snapshot and statistics types
// ABOUTME: Rendered by the UI and observed by the metrics exporter
package device

import (
	"time"

	"github.com/songbird-audio/voicechat-go/pkg/playback"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

// Mode is what the device is doing
type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlaying
	ModePaused
	ModeDisconnected
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	case ModeDisconnected:
		return "disconnected"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// StorageStatus distinguishes a missing card from a full one
type StorageStatus int

const (
	StorageOK StorageStatus = iota
	StorageAbsent
	StorageFull
)

func (s StorageStatus) String() string {
	switch s {
	case StorageOK:
		return "ok"
	case StorageAbsent:
		return "absent"
	case StorageFull:
		return "full"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the device
type Status struct {
	Name      string
	Mode      Mode
	Channel   int
	Channels  int
	Connected bool
	Storage   StorageStatus
	Muted     bool
	Queued    int

	// Switching is set for a short while after a channel change
	Switching bool

	Recorded time.Duration

	Position     time.Duration
	FileDuration time.Duration
	Sender       string

	Users     []string
	LastError string
}

// Stats aggregates counters from every engine
type Stats struct {
	Link     transport.Stats
	Playback playback.Stats

	PacketsEncoded uint64
	PacketsDecoded uint64

	RecordingsSent    uint64
	RecordingFailures uint64
	SendFailures      uint64
	MicOverruns       uint64

	Users     int
	Connected bool
	Ticks     uint64
}
