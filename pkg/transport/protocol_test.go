// ABOUTME: Tests for the device protocol receive machine and send paths
// ABOUTME: Drives the machine through an in-memory medium and card
package transport_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/songbird-audio/voicechat-go/pkg/codec/codectest"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/playback"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

type memMedium struct {
	in  []byte
	out bytes.Buffer
}

func (m *memMedium) Available() int { return len(m.in) }

func (m *memMedium) ReadByte() (byte, error) {
	b := m.in[0]
	m.in = m.in[1:]
	return b, nil
}

func (m *memMedium) Write(p []byte) (int, error) { return m.out.Write(p) }

func (m *memMedium) feed(b ...[]byte) {
	for _, chunk := range b {
		m.in = append(m.in, chunk...)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newProtocol(t *testing.T) (*transport.Protocol, *memMedium, *storage.Storage) {
	t.Helper()
	st := storage.NewMemory()
	m := &memMedium{}
	return transport.New(m, st, transport.Config{}), m, st
}

func audioFrame(t *testing.T, ch byte, user string, data []byte) []byte {
	t.Helper()
	f, err := transport.AppendAudioFrame(nil, ch, user, data)
	require.NoError(t, err)
	return f
}

func controlFrame(t *testing.T, msg transport.MsgType, user string) []byte {
	t.Helper()
	f, err := transport.AppendControlFrame(nil, msg, user)
	require.NoError(t, err)
	return f
}

func readFile(t *testing.T, st *storage.Storage, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(st.Fs(), path)
	require.NoError(t, err)
	return data
}

func TestReceiveAudioFrame(t *testing.T) {
	p, m, st := newProtocol(t)
	data := []byte("OPUS\x01\x00payload")
	m.feed(audioFrame(t, 1, "alice", data))

	require.True(t, p.ProcessIncoming())
	rx, ok := p.ReceivedFile()
	require.True(t, ok)
	require.Equal(t, "/RX/CH2/MSG_00001_from_alice.opus", rx.Path)
	require.Equal(t, 1, rx.Channel)
	require.Equal(t, "alice", rx.Sender)
	require.Equal(t, len(data), rx.Size)
	require.Equal(t, data, readFile(t, st, rx.Path))

	p.ClearReceivedFile()
	_, ok = p.ReceivedFile()
	require.False(t, ok)
	require.Equal(t, uint32(2), p.NextSequence())
	require.Equal(t, uint64(1), p.Stats().FilesReceived)
}

func TestReceiveAnonymous(t *testing.T) {
	p, m, st := newProtocol(t)
	m.feed(audioFrame(t, 0, "", []byte{1, 2, 3}))

	require.True(t, p.ProcessIncoming())
	rx, _ := p.ReceivedFile()
	require.Equal(t, "/RX/CH1/MSG_00001.opus", rx.Path)
	require.Equal(t, []byte{1, 2, 3}, readFile(t, st, rx.Path))
}

func TestResyncAfterInvalidLength(t *testing.T) {
	p, m, _ := newProtocol(t)
	m.feed([]byte{0xAA, 0x55, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x13}, audioFrame(t, 2, "bob", []byte{9, 9}))

	require.True(t, p.ProcessIncoming())
	rx, ok := p.ReceivedFile()
	require.True(t, ok)
	require.Equal(t, "/RX/CH3/MSG_00001_from_bob.opus", rx.Path)
	require.Equal(t, uint64(1), p.Stats().InvalidFrames)
}

func TestRepeatedSyncAndNoise(t *testing.T) {
	p, m, _ := newProtocol(t)
	frame := audioFrame(t, 0, "x", []byte{7})
	m.feed([]byte{0x00, 0x13, 0xAA, 0x01, 0xAA}, frame)

	require.True(t, p.ProcessIncoming())
	require.Equal(t, uint64(1), p.Stats().Desyncs)
}

func TestZeroLengthAudioResets(t *testing.T) {
	p, m, _ := newProtocol(t)
	var hdr [transport.HeaderSize]byte
	transport.EncodeHeader(hdr[:], 0, 0)
	m.feed(hdr[:], controlFrame(t, transport.MsgJoin, "carol"))

	require.False(t, p.ProcessIncoming())
	require.Equal(t, uint64(1), p.Stats().InvalidFrames)
	require.True(t, p.Roster().Contains("carol"))
}

func TestControlFrames(t *testing.T) {
	p, m, _ := newProtocol(t)
	m.feed(
		controlFrame(t, transport.MsgJoin, "alice"),
		controlFrame(t, transport.MsgJoin, "bob"),
		controlFrame(t, transport.MsgJoin, "alice"),
		controlFrame(t, transport.MsgPing, ""),
		controlFrame(t, transport.MsgPart, "nobody"),
	)

	require.False(t, p.ProcessIncoming())
	r := p.Roster()
	require.Equal(t, []string{"alice", "bob"}, r.Users())
	require.True(t, r.Changed())
	require.Equal(t, uint64(1), p.Stats().Pings)
	require.Equal(t, uint64(5), p.Stats().ControlFrames)

	r.ClearChanged()
	m.feed(controlFrame(t, transport.MsgPart, "alice"))
	p.ProcessIncoming()
	require.Equal(t, []string{"bob"}, r.Users())
	require.True(t, r.Changed())
}

func TestControlEmptyUsernameResets(t *testing.T) {
	p, m, _ := newProtocol(t)
	var hdr [transport.HeaderSize]byte
	transport.EncodeHeader(hdr[:], 0, transport.SelectorControl)
	m.feed(hdr[:], []byte{byte(transport.MsgJoin), 0x00}, controlFrame(t, transport.MsgJoin, "dave"))

	p.ProcessIncoming()
	require.Equal(t, uint64(1), p.Stats().InvalidFrames)
	require.Equal(t, []string{"dave"}, p.Roster().Users())
}

func TestUnknownControlResets(t *testing.T) {
	p, m, _ := newProtocol(t)
	var hdr [transport.HeaderSize]byte
	transport.EncodeHeader(hdr[:], 0, transport.SelectorControl)
	m.feed(hdr[:], []byte{0x09}, controlFrame(t, transport.MsgJoin, "erin"))

	p.ProcessIncoming()
	require.Equal(t, uint64(1), p.Stats().InvalidFrames)
	require.True(t, p.Roster().Contains("erin"))
}

func TestDiscardOnCreateFailure(t *testing.T) {
	p, m, st := newProtocol(t)
	st.SetPresent(false)

	// the payload embeds a complete frame that must not be parsed
	payload := controlFrame(t, transport.MsgJoin, "mallory")
	m.feed(audioFrame(t, 0, "alice", payload), controlFrame(t, transport.MsgJoin, "alice"))

	require.False(t, p.ProcessIncoming())
	_, ok := p.ReceivedFile()
	require.False(t, ok)
	require.Equal(t, []string{"alice"}, p.Roster().Users())
	require.Equal(t, uint64(1), p.Stats().DiscardedFiles)
	require.Equal(t, uint32(1), p.NextSequence())
}

func TestDiscardOutOfRangeChannel(t *testing.T) {
	p, m, st := newProtocol(t)
	payload := controlFrame(t, transport.MsgJoin, "mallory")
	m.feed(audioFrame(t, 7, "", payload), audioFrame(t, 4, "", []byte{1}))

	require.True(t, p.ProcessIncoming())
	rx, _ := p.ReceivedFile()
	require.Equal(t, "/RX/CH5/MSG_00001.opus", rx.Path)
	require.False(t, p.Roster().Contains("mallory"))
	require.False(t, st.Exists("/RX/CH8"))
}

func TestWriteFailureDropsPartialFile(t *testing.T) {
	p, m, st := newProtocol(t)
	st.SetCapacity(10)
	data := bytes.Repeat([]byte{0x42}, 600)
	m.feed(audioFrame(t, 0, "", data), controlFrame(t, transport.MsgJoin, "frank"))

	require.False(t, p.ProcessIncoming())
	require.False(t, st.Exists("/RX/CH1/MSG_00001.opus"))
	require.False(t, st.Exists("/RX/CH1/MSG_00001.part"))
	require.True(t, p.Roster().Contains("frank"))
	require.Equal(t, uint64(1), p.Stats().DiscardedFiles)
}

func TestMessageInFlightIsNotPlayable(t *testing.T) {
	p, m, st := newProtocol(t)
	msg := append(append([]byte{}, container.Header[:]...), 4, 0, 1, 2, 3, 4)
	frame := audioFrame(t, 0, "alice", msg)
	split := len(frame) - 3

	m.feed(frame[:split])
	require.False(t, p.ProcessIncoming())
	require.True(t, st.Exists("/RX/CH1/MSG_00001_from_alice.part"))

	c, _, _ := codectest.New(40)
	pb := playback.New(st, c, playback.Config{})
	require.NoError(t, pb.LoadChannelQueue(0))
	require.Zero(t, pb.QueuedCount())
	require.False(t, pb.StartPlayback())
	require.Zero(t, pb.Stats().Deleted)

	m.feed(frame[split:])
	require.True(t, p.ProcessIncoming())
	rx, ok := p.ReceivedFile()
	require.True(t, ok)
	require.Equal(t, "/RX/CH1/MSG_00001_from_alice.opus", rx.Path)
	require.Equal(t, msg, readFile(t, st, rx.Path))
	require.False(t, st.Exists("/RX/CH1/MSG_00001_from_alice.part"))

	require.NoError(t, pb.LoadChannelQueue(0))
	require.Equal(t, 1, pb.QueuedCount())
}

func TestStalePartialRemovedAtStartup(t *testing.T) {
	st := storage.NewMemory()
	require.NoError(t, st.MkdirAll(storage.RXDir(0)))
	require.NoError(t, afero.WriteFile(st.Fs(), "/RX/CH1/MSG_00009_from_x.part", []byte{1}, 0o644))
	require.NoError(t, afero.WriteFile(st.Fs(), "/RX/CH1/MSG_00002.opus", []byte{1}, 0o644))

	p := transport.New(&memMedium{}, st, transport.Config{})
	require.False(t, st.Exists("/RX/CH1/MSG_00009_from_x.part"))
	require.True(t, st.Exists("/RX/CH1/MSG_00002.opus"))
	require.Equal(t, uint32(3), p.NextSequence())
}

func TestLogFrameFromBridge(t *testing.T) {
	p, m, _ := newProtocol(t)
	m.feed(transport.AppendLogFrame(nil, "hello device"), controlFrame(t, transport.MsgJoin, "gina"))

	p.ProcessIncoming()
	require.Equal(t, uint64(1), p.Stats().LogFrames)
	require.True(t, p.Roster().Contains("gina"))
}

func TestStopsAfterCompletedFile(t *testing.T) {
	p, m, _ := newProtocol(t)
	second := audioFrame(t, 0, "", []byte{2})
	m.feed(audioFrame(t, 0, "", []byte{1}), second)

	require.True(t, p.ProcessIncoming())
	require.Equal(t, len(second), m.Available())
	p.ClearReceivedFile()

	require.True(t, p.ProcessIncoming())
	rx, _ := p.ReceivedFile()
	require.Equal(t, "/RX/CH1/MSG_00002.opus", rx.Path)
}

func TestSequenceRecovery(t *testing.T) {
	st := storage.NewMemory()
	require.NoError(t, st.MkdirAll(storage.RXDir(2)))
	require.NoError(t, afero.WriteFile(st.Fs(), "/RX/CH3/MSG_00017_from_x.opus", []byte{1}, 0o644))
	require.NoError(t, afero.WriteFile(st.Fs(), "/RX/CH3/MSG_00004.opus", []byte{1}, 0o644))

	m := &memMedium{}
	p := transport.New(m, st, transport.Config{})
	require.Equal(t, uint32(18), p.NextSequence())

	m.feed(audioFrame(t, 0, "", []byte{1}))
	require.True(t, p.ProcessIncoming())
	rx, _ := p.ReceivedFile()
	require.Equal(t, "/RX/CH1/MSG_00018.opus", rx.Path)
}

func TestLiveness(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := &memMedium{}
	p := transport.New(m, storage.NewMemory(), transport.Config{Now: clock.Now})

	require.False(t, p.IsConnected())

	m.feed([]byte{0x00})
	p.ProcessIncoming()
	require.True(t, p.IsConnected())

	clock.now = clock.now.Add(2900 * time.Millisecond)
	require.True(t, p.IsConnected())

	clock.now = clock.now.Add(100 * time.Millisecond)
	require.False(t, p.IsConnected())
}

func TestSendFile(t *testing.T) {
	p, m, st := newProtocol(t)
	data := bytes.Repeat([]byte{0x5A}, 700)
	require.NoError(t, st.MkdirAll(storage.TXDir))
	require.NoError(t, afero.WriteFile(st.Fs(), "/TX/MSG_00001_CH3.opus", data, 0o644))

	require.NoError(t, p.SendFile("/TX/MSG_00001_CH3.opus", 2))

	var u transport.UplinkParser
	frames := u.Feed(m.out.Bytes())
	require.Len(t, frames, 1)
	require.Equal(t, byte(2), frames[0].Selector)
	require.Equal(t, data, frames[0].Payload)
	require.Equal(t, uint64(1), p.Stats().FilesSent)
	require.Equal(t, uint64(transport.HeaderSize+len(data)), p.Stats().BytesSent)
}

func TestSendFileTooLarge(t *testing.T) {
	p, m, st := newProtocol(t)
	require.NoError(t, st.MkdirAll(storage.TXDir))
	require.NoError(t, afero.WriteFile(st.Fs(), "/TX/big.opus", make([]byte, transport.MaxFrameLength+1), 0o644))

	err := p.SendFile("/TX/big.opus", 0)
	require.ErrorIs(t, err, transport.ErrFrameTooLarge)
	require.Zero(t, m.out.Len())
}

func TestSendFileInvalidChannel(t *testing.T) {
	p, _, _ := newProtocol(t)
	require.ErrorIs(t, p.SendFile("/TX/x.opus", 5), transport.ErrSelector)
}

func TestSendLog(t *testing.T) {
	p, m, _ := newProtocol(t)
	require.NoError(t, p.SendLog(strings.Repeat("x", 300)))
	require.NoError(t, p.SendLogf("seq %d", 4))

	var u transport.UplinkParser
	frames := u.Feed(m.out.Bytes())
	require.Len(t, frames, 2)
	require.True(t, frames[0].IsLog())
	require.Len(t, frames[0].Payload, transport.MaxLogLength)
	require.Equal(t, "seq 4", string(frames[1].Payload))
	require.Equal(t, uint64(2), p.Stats().LogsSent)
}

func TestLogWriter(t *testing.T) {
	p, m, _ := newProtocol(t)
	w := p.LogWriter()
	n, err := w.Write([]byte("first\nsecond\n"))
	require.NoError(t, err)
	require.Equal(t, 13, n)

	var u transport.UplinkParser
	frames := u.Feed(m.out.Bytes())
	require.Len(t, frames, 2)
	require.Equal(t, "first", string(frames[0].Payload))
	require.Equal(t, "second", string(frames[1].Payload))
}
