// ABOUTME: Tests for frame builders, the uplink parser and the roster
// ABOUTME: Checks byte layouts and chunked reassembly
package transport_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

func TestEncodeHeader(t *testing.T) {
	var hdr [transport.HeaderSize]byte
	transport.EncodeHeader(hdr[:], 0x01020304, 3)
	require.Equal(t, []byte{0xAA, 0x55, 0x04, 0x03, 0x02, 0x01, 0x03}, hdr[:])
}

func TestAppendAudioFrame(t *testing.T) {
	f, err := transport.AppendAudioFrame(nil, 2, "amy", []byte{0xDE, 0xAD})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0x55, 2, 0, 0, 0, 2, 3, 'a', 'm', 'y', 0xDE, 0xAD}, f)

	_, err = transport.AppendAudioFrame(nil, 0, strings.Repeat("u", 32), []byte{1})
	require.ErrorIs(t, err, transport.ErrUsername)

	_, err = transport.AppendAudioFrame(nil, 0, "", nil)
	require.ErrorIs(t, err, transport.ErrFrameTooLarge)

	_, err = transport.AppendAudioFrame(nil, transport.SelectorControl, "", []byte{1})
	require.ErrorIs(t, err, transport.ErrSelector)
}

func TestAppendControlFrame(t *testing.T) {
	f, err := transport.AppendControlFrame(nil, transport.MsgPing, "")
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0x55, 0, 0, 0, 0, 0xFF, 0x03}, f)

	f, err = transport.AppendControlFrame([]byte{0x01}, transport.MsgJoin, "")
	require.ErrorIs(t, err, transport.ErrUsername)
	require.Equal(t, []byte{0x01}, f)

	f, err = transport.AppendControlFrame(nil, transport.MsgPart, "zo")
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0x55, 0, 0, 0, 0, 0xFF, 0x02, 2, 'z', 'o'}, f)
}

func TestUplinkParserChunked(t *testing.T) {
	a, err := transport.AppendUplinkFrame(nil, 1, []byte("abc"))
	require.NoError(t, err)
	stream := append([]byte{0x11, 0xAA, 0x00}, a...)
	stream = transport.AppendLogFrame(stream, "boot ok")

	var u transport.UplinkParser
	var frames []transport.Frame
	for _, b := range stream {
		frames = append(frames, u.Feed([]byte{b})...)
	}

	require.Len(t, frames, 2)
	require.Equal(t, byte(1), frames[0].Selector)
	require.Equal(t, "abc", string(frames[0].Payload))
	require.True(t, frames[1].IsLog())
	require.Equal(t, "boot ok", string(frames[1].Payload))
	require.Equal(t, uint64(1), u.Desyncs)
}

func TestUplinkParserRejectsBadLength(t *testing.T) {
	a, err := transport.AppendUplinkFrame(nil, 0, []byte{5})
	require.NoError(t, err)

	var u transport.UplinkParser
	frames := u.Feed(append([]byte{0xAA, 0x55, 0xFF, 0xFF, 0xFF, 0xFF}, a...))
	require.Len(t, frames, 1)
	require.Equal(t, uint64(1), u.Invalid)
}

func TestRosterJoinPart(t *testing.T) {
	var r transport.Roster

	require.True(t, r.Join("a"))
	require.False(t, r.Join("a"))
	require.True(t, r.Join("b"))
	require.True(t, r.Join("c"))
	require.False(t, r.Join(""))
	require.False(t, r.Join(strings.Repeat("n", transport.MaxUsername+1)))
	require.Equal(t, 3, r.Len())

	require.True(t, r.Part("a"))
	require.False(t, r.Part("a"))
	require.Equal(t, []string{"b", "c"}, r.Users())

	u, ok := r.User(1)
	require.True(t, ok)
	require.Equal(t, "c", u)
	_, ok = r.User(2)
	require.False(t, ok)
}

func TestRosterCapacity(t *testing.T) {
	var r transport.Roster
	for i := 0; i < transport.MaxUsers; i++ {
		require.True(t, r.Join(string(rune('A'+i))))
	}
	require.False(t, r.Join("overflow"))
	require.Equal(t, transport.MaxUsers, r.Len())

	r.ClearChanged()
	r.Reset()
	require.Zero(t, r.Len())
	require.True(t, r.Changed())
}
