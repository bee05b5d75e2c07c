// ABOUTME: Wire constants and frame builders for both link directions
// ABOUTME: Used by the device protocol, the bridge hub and the tests
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// SyncByte1 and SyncByte2 open every frame
	SyncByte1 byte = 0xAA
	SyncByte2 byte = 0x55

	// HeaderSize is sync(2) + length(4) + selector(1)
	HeaderSize = 7

	// MaxFrameLength bounds the length field
	MaxFrameLength = 65536

	// SelectorControl marks join/part/ping frames; their length field is 0
	SelectorControl byte = 0xFF

	// SelectorLog marks diagnostic text frames
	SelectorLog byte = 0xFE

	// MaxUsername bounds usernames on the wire and in the roster
	MaxUsername = 31

	// MaxUsers is the roster capacity
	MaxUsers = 20

	// MaxLogLength caps a log frame payload
	MaxLogLength = 255

	// ChunkSize is the write size used when streaming a file
	ChunkSize = 256

	// LivenessWindow is how long the link counts as up after the last byte
	LivenessWindow = 3 * time.Second
)

// MsgType is the control message type following a control header
type MsgType byte

const (
	MsgJoin MsgType = 0x01
	MsgPart MsgType = 0x02
	MsgPing MsgType = 0x03
)

func (m MsgType) String() string {
	switch m {
	case MsgJoin:
		return "join"
	case MsgPart:
		return "part"
	case MsgPing:
		return "ping"
	default:
		return fmt.Sprintf("msg(0x%02X)", byte(m))
	}
}

var (
	// ErrFrameTooLarge means a payload exceeds MaxFrameLength
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrUsername means a username is empty or longer than MaxUsername
	ErrUsername = errors.New("transport: invalid username")

	// ErrSelector means a selector is reserved or out of range
	ErrSelector = errors.New("transport: invalid selector")
)

// EncodeHeader writes a frame header into dst, which must hold HeaderSize bytes
func EncodeHeader(dst []byte, length uint32, selector byte) {
	dst[0] = SyncByte1
	dst[1] = SyncByte2
	binary.LittleEndian.PutUint32(dst[2:6], length)
	dst[6] = selector
}

func appendHeader(dst []byte, length int, selector byte) []byte {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], uint32(length), selector)
	return append(dst, hdr[:]...)
}

func checkUsername(name string, allowEmpty bool) error {
	if len(name) > MaxUsername || (!allowEmpty && len(name) == 0) {
		return fmt.Errorf("%w: %q", ErrUsername, name)
	}
	return nil
}

// AppendAudioFrame appends a bridge-to-device audio frame. An empty
// username sends the message anonymously.
func AppendAudioFrame(dst []byte, channel byte, username string, data []byte) ([]byte, error) {
	if channel >= SelectorLog {
		return dst, fmt.Errorf("%w: 0x%02X", ErrSelector, channel)
	}
	if len(data) == 0 || len(data) > MaxFrameLength {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	if err := checkUsername(username, true); err != nil {
		return dst, err
	}

	dst = appendHeader(dst, len(data), channel)
	dst = append(dst, byte(len(username)))
	dst = append(dst, username...)
	return append(dst, data...), nil
}

// AppendControlFrame appends a control frame. Ping carries no username.
func AppendControlFrame(dst []byte, msg MsgType, username string) ([]byte, error) {
	dst = appendHeader(dst, 0, SelectorControl)
	dst = append(dst, byte(msg))
	if msg == MsgPing {
		return dst, nil
	}
	if err := checkUsername(username, false); err != nil {
		return dst[:len(dst)-HeaderSize-1], err
	}
	dst = append(dst, byte(len(username)))
	return append(dst, username...), nil
}

// AppendLogFrame appends a log frame, truncating msg to MaxLogLength
func AppendLogFrame(dst []byte, msg string) []byte {
	if len(msg) > MaxLogLength {
		msg = msg[:MaxLogLength]
	}
	dst = appendHeader(dst, len(msg), SelectorLog)
	return append(dst, msg...)
}

// AppendUplinkFrame appends a device-to-bridge audio frame (no username)
func AppendUplinkFrame(dst []byte, channel byte, data []byte) ([]byte, error) {
	if channel >= SelectorLog {
		return dst, fmt.Errorf("%w: 0x%02X", ErrSelector, channel)
	}
	if len(data) == 0 || len(data) > MaxFrameLength {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	dst = appendHeader(dst, len(data), channel)
	return append(dst, data...), nil
}
