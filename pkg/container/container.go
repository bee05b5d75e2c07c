// ABOUTME: Packetized voice container: 6-byte header then length-prefixed packets
// ABOUTME: Shared constants, file contracts and errors for the writer and reader
package container

import (
	"errors"
	"io"
	"time"
)

const (
	// HeaderSize is the size of the file header
	HeaderSize = 6

	// PacketOverhead is the length prefix preceding every packet
	PacketOverhead = 2

	// DefaultMaxPacket is the largest packet accepted by default
	DefaultMaxPacket = 256

	// DefaultSyncEvery forces a flush after this many packets
	DefaultSyncEvery = 50

	// PacketDuration is the audio carried by one packet
	PacketDuration = 20 * time.Millisecond
)

// Header is "OPUS" followed by version 1.0
var Header = [HeaderSize]byte{'O', 'P', 'U', 'S', 0x01, 0x00}

var (
	// ErrBadHeader means the file does not start with Header
	ErrBadHeader = errors.New("container: bad header")

	// ErrCorrupt means a packet length is invalid or a payload is truncated
	ErrCorrupt = errors.New("container: corrupt packet")

	// ErrPacketSize means a packet is empty or larger than the maximum
	ErrPacketSize = errors.New("container: invalid packet size")

	// ErrClosed means the writer or reader was already closed
	ErrClosed = errors.New("container: closed")
)

// WriteFile is the destination of a Writer
type WriteFile interface {
	io.Writer
	Sync() error
	Close() error
}

// ReadFile is the source of a Reader
type ReadFile interface {
	io.ReadSeeker
	Close() error
}

// Size returns the file size for the given packet payload sizes
func Size(packets ...int) int64 {
	size := int64(HeaderSize)
	for _, p := range packets {
		size += int64(PacketOverhead + p)
	}
	return size
}

// Duration converts a packet count to audio time
func Duration(packets int) time.Duration {
	return time.Duration(packets) * PacketDuration
}
