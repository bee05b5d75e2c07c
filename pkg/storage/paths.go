// ABOUTME: Message path formatting and parsing for the card layout
// ABOUTME: Sequence-prefixed names sort chronologically within a directory
package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	// Channels is the number of logical channels with an RX directory
	Channels = 5

	// TXDir holds outgoing recordings
	TXDir = "/TX"

	// RXRoot holds one CHn directory per channel
	RXRoot = "/RX"

	// Extension marks container files
	Extension = ".opus"

	// PartialExtension marks a message still being received
	PartialExtension = ".part"

	// MaxPathLen bounds every generated path
	MaxPathLen = 63

	// UnknownSender is reported when a name carries no sender
	UnknownSender = "Unknown"

	messagePrefix = "MSG_"
	senderMarker  = "_from_"
)

// RXDir returns the directory for channel (0-based)
func RXDir(channel int) string {
	return fmt.Sprintf("%s/CH%d", RXRoot, channel+1)
}

// TXPath returns the path of outgoing recording seq on channel (0-based)
func TXPath(seq uint32, channel int) (string, error) {
	p := fmt.Sprintf("%s/%s%05d_CH%d%s", TXDir, messagePrefix, seq, channel+1, Extension)
	if len(p) > MaxPathLen {
		return "", fmt.Errorf("%w: %s", ErrPathTooLong, p)
	}
	return p, nil
}

// RXPath returns the path of received message seq on channel (0-based).
// The sender is sanitized and shortened to keep the path within MaxPathLen;
// an empty sender yields an anonymous name.
func RXPath(channel int, seq uint32, sender string) (string, error) {
	base := fmt.Sprintf("%s/%s%05d", RXDir(channel), messagePrefix, seq)
	if len(base)+len(Extension) > MaxPathLen {
		return "", fmt.Errorf("%w: %s", ErrPathTooLong, base)
	}

	sender = SanitizeName(sender)
	if sender != "" {
		room := MaxPathLen - len(base) - len(senderMarker) - len(Extension)
		if room > 0 {
			if len(sender) > room {
				sender = sender[:room]
			}
			return base + senderMarker + sender + Extension, nil
		}
	}
	return base + Extension, nil
}

// PartialPath returns the in-progress name for message path p. It has the
// same length as p so it stays within MaxPathLen.
func PartialPath(p string) string {
	return strings.TrimSuffix(p, Extension) + PartialExtension
}

// IsPartial reports whether name is an in-progress message
func IsPartial(name string) bool {
	return strings.HasSuffix(path.Base(name), PartialExtension)
}

// SanitizeName replaces bytes that are unsafe in a file name with '_'
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IsMessage reports whether name is a container file name
func IsMessage(name string) bool {
	return strings.HasSuffix(path.Base(name), Extension)
}

// ParseSequence extracts the sequence number from MSG_NNNNN... names
func ParseSequence(name string) (uint32, bool) {
	name = path.Base(name)
	if !strings.HasPrefix(name, messagePrefix) || !strings.HasSuffix(name, Extension) {
		return 0, false
	}

	digits := name[len(messagePrefix):]
	var seq uint64
	n := 0
	for n < len(digits) && digits[n] >= '0' && digits[n] <= '9' {
		seq = seq*10 + uint64(digits[n]-'0')
		if seq > 0xFFFFFFFF {
			return 0, false
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return uint32(seq), true
}

// SenderFromName extracts the sender from MSG_NNNNN_from_<sender>.opus,
// falling back to UnknownSender
func SenderFromName(name string) string {
	name = path.Base(name)
	from := strings.Index(name, senderMarker)
	dot := strings.LastIndex(name, ".")
	if from > 0 && dot > from+len(senderMarker) {
		return name[from+len(senderMarker) : dot]
	}
	return UnknownSender
}

// SortMessages orders names by sequence number, oldest first. Names
// without a sequence sort after numbered ones, by name.
func SortMessages(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		si, iok := ParseSequence(names[i])
		sj, jok := ParseSequence(names[j])
		switch {
		case iok && jok && si != sj:
			return si < sj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
}
