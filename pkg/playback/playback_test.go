// ABOUTME: Tests for the playback engine
// ABOUTME: Uses in-memory storage, fake frame codecs and a block queue as the speaker
package playback

import (
	"testing"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/codec/codectest"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	st   *storage.Storage
	e    *Engine
	dec  *codectest.Decoder
	sink *audio.BlockQueue
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st := storage.NewMemory()
	for ch := 0; ch < storage.Channels; ch++ {
		require.NoError(t, st.MkdirAll(storage.RXDir(ch)))
	}
	c, _, dec := codectest.New(10)
	return &fixture{
		st:   st,
		e:    New(st, c, cfg),
		dec:  dec,
		sink: audio.NewBlockQueue(1000),
	}
}

func (f *fixture) message(t *testing.T, channel int, seq uint32, sender string, samples ...int16) string {
	t.Helper()
	p, err := storage.RXPath(channel, seq, sender)
	require.NoError(t, err)
	file, err := f.st.Create(p)
	require.NoError(t, err)
	w, err := container.NewWriter(file, container.WriterOptions{})
	require.NoError(t, err)
	for _, s := range samples {
		require.NoError(t, w.WritePacket(codectest.Packet(s, 10)))
	}
	require.NoError(t, w.Close())
	return p
}

func (f *fixture) raw(t *testing.T, p string, data []byte) {
	t.Helper()
	file, err := f.st.Create(p)
	require.NoError(t, err)
	_, err = file.Write(data)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

// drain runs the engine until it goes idle, bounded to catch runaway loops
func (f *fixture) drain(t *testing.T) int {
	t.Helper()
	calls := 0
	for f.e.ProcessPlayback(f.sink.Sink()) {
		calls++
		require.Less(t, calls, 10000)
		f.sink.Reset()
	}
	return calls
}

func samples(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEmptyChannel(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.False(t, f.e.HasMessages())
	require.False(t, f.e.StartPlayback())
	require.Equal(t, StateIdle, f.e.State())
	require.False(t, f.e.ProcessPlayback(f.sink.Sink()))
}

func TestMissingChannelDirectory(t *testing.T) {
	st := storage.NewMemory()
	c, _, _ := codectest.New(10)
	e := New(st, c, Config{})

	require.NoError(t, e.LoadChannelQueue(3))
	require.Zero(t, e.QueuedCount())
}

func TestInvalidChannel(t *testing.T) {
	f := newFixture(t, Config{})
	require.ErrorIs(t, f.e.LoadChannelQueue(storage.Channels), ErrInvalidChannel)
}

func TestPositionFollowsPackets(t *testing.T) {
	f := newFixture(t, Config{})
	p := f.message(t, 0, 1, "Alice", samples(10, 500)...)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	require.Equal(t, "Alice", f.e.Sender())
	require.Equal(t, "MSG_00001_from_Alice.opus", f.e.CurrentFileName())
	require.Equal(t, int64(200), f.e.FileDuration().Milliseconds())

	// Each call: decode, 7 blocks, decode, 7 blocks
	require.True(t, f.e.ProcessPlayback(f.sink.Sink()))
	require.Equal(t, int64(40), f.e.Position().Milliseconds())
	require.Equal(t, 14, f.sink.Len())

	for i := 0; i < 4; i++ {
		require.True(t, f.e.ProcessPlayback(f.sink.Sink()))
	}
	require.Equal(t, int64(200), f.e.Position().Milliseconds())
	require.Equal(t, 70, f.sink.Len())
	require.Equal(t, 10, f.dec.Packets)

	// 882 = 6*128 + 114: the 7th block is zero padded
	for i := 0; i < 6; i++ {
		require.Equal(t, int16(500), f.sink.Front()[0])
		f.sink.Pop()
	}
	seventh := f.sink.Front()
	require.Equal(t, int16(500), seventh[113])
	require.Equal(t, int16(0), seventh[114])

	require.False(t, f.e.ProcessPlayback(f.sink.Sink()))
	require.Equal(t, StateIdle, f.e.State())
	require.False(t, f.st.Exists(p), "played message must be deleted")
	require.Equal(t, uint64(1), f.e.Stats().Played)
}

func TestThreeFileQueueDrains(t *testing.T) {
	f := newFixture(t, Config{})
	paths := []string{
		f.message(t, 2, 3, "", samples(2, 3)...),
		f.message(t, 2, 1, "bob", samples(3, 1)...),
		f.message(t, 2, 2, "", samples(1, 2)...),
	}

	require.NoError(t, f.e.LoadChannelQueue(2))
	require.Equal(t, 3, f.e.QueuedCount())
	require.True(t, f.e.StartPlayback())
	require.Equal(t, "MSG_00001_from_bob.opus", f.e.CurrentFileName())

	f.drain(t)

	require.Equal(t, StateIdle, f.e.State())
	require.False(t, f.e.HasMessages())
	require.Equal(t, 6, f.dec.Packets)
	for _, p := range paths {
		require.False(t, f.st.Exists(p))
	}
	stats := f.e.Stats()
	require.Equal(t, uint64(3), stats.Played)
	require.Equal(t, uint64(3), stats.Deleted)
}

func TestUnopenableFileIsSkipped(t *testing.T) {
	f := newFixture(t, Config{})
	f.raw(t, storage.RXDir(0)+"/MSG_00001.opus", []byte("garbage!"))
	good := f.message(t, 0, 2, "", samples(2, 7)...)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	require.Equal(t, "MSG_00002.opus", f.e.CurrentFileName())
	require.False(t, f.st.Exists(storage.RXDir(0)+"/MSG_00001.opus"))
	require.Equal(t, uint64(1), f.e.Stats().Unopenable)

	f.drain(t)
	require.False(t, f.st.Exists(good))
}

func TestAllFilesUnopenable(t *testing.T) {
	f := newFixture(t, Config{})
	f.raw(t, storage.RXDir(0)+"/MSG_00001.opus", nil)
	f.raw(t, storage.RXDir(0)+"/MSG_00002.opus", []byte("OPUS"))

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.False(t, f.e.StartPlayback())
	require.Equal(t, StateIdle, f.e.State())
	require.False(t, f.e.HasMessages())
}

func TestCorruptTailPlaysPrefix(t *testing.T) {
	f := newFixture(t, Config{})
	data := append([]byte{}, container.Header[:]...)
	data = append(data, 10, 0)
	data = append(data, codectest.Packet(9, 10)...)
	data = append(data, 0, 0) // zero length
	f.raw(t, storage.RXDir(1)+"/MSG_00001.opus", data)
	f.message(t, 1, 2, "", 4)

	require.NoError(t, f.e.LoadChannelQueue(1))
	require.True(t, f.e.StartPlayback())
	require.Equal(t, int64(20), f.e.FileDuration().Milliseconds())

	f.drain(t)
	require.Equal(t, 2, f.dec.Packets)
	require.Equal(t, uint64(1), f.e.Stats().Corrupt)
	require.Equal(t, uint64(2), f.e.Stats().Deleted)
}

func TestDecodeFailureAdvances(t *testing.T) {
	f := newFixture(t, Config{})
	f.dec.Fail = true
	f.dec.FailOn = 0xEE
	// first packet decodes to 0x00EE which the fake rejects
	f.message(t, 0, 1, "", 0xEE, 1)
	f.message(t, 0, 2, "", 5)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	f.drain(t)

	require.Equal(t, uint64(1), f.e.Stats().DecodeErrors)
	require.Equal(t, 1, f.dec.Packets)
	require.False(t, f.e.HasMessages())
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, Config{})
	f.message(t, 0, 1, "", samples(5, 1)...)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.False(t, f.e.PausePlayback())
	require.False(t, f.e.ResumePlayback())

	require.True(t, f.e.StartPlayback())
	require.True(t, f.e.ProcessPlayback(f.sink.Sink()))
	pos := f.e.Position()

	require.True(t, f.e.PausePlayback())
	require.True(t, f.e.IsPaused())
	require.False(t, f.e.PausePlayback())
	require.False(t, f.e.ProcessPlayback(f.sink.Sink()))
	require.Equal(t, pos, f.e.Position())

	require.True(t, f.e.ResumePlayback())
	require.True(t, f.e.IsPlaying())
	require.False(t, f.e.ResumePlayback())
}

func TestStopKeepsFile(t *testing.T) {
	f := newFixture(t, Config{})
	p := f.message(t, 0, 1, "", samples(5, 1)...)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	f.e.ProcessPlayback(f.sink.Sink())
	f.e.StopPlayback()

	require.Equal(t, StateIdle, f.e.State())
	require.Zero(t, f.e.Position())
	require.True(t, f.st.Exists(p))
	require.True(t, f.e.HasMessages())

	// restarts the same message from the beginning
	require.True(t, f.e.StartPlayback())
	require.Equal(t, "MSG_00001.opus", f.e.CurrentFileName())
}

func TestSkipToNext(t *testing.T) {
	f := newFixture(t, Config{})
	first := f.message(t, 0, 1, "", samples(5, 1)...)
	f.message(t, 0, 2, "carol", samples(5, 2)...)

	require.False(t, f.e.SkipToNext())

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	require.True(t, f.e.SkipToNext())
	require.False(t, f.st.Exists(first))
	require.Equal(t, "carol", f.e.Sender())
	require.Equal(t, 1, f.e.QueuedCount())

	require.False(t, f.e.SkipToNext())
	require.Equal(t, StateIdle, f.e.State())
	require.Equal(t, uint64(2), f.e.Stats().Skipped)
}

func TestQueueBounded(t *testing.T) {
	f := newFixture(t, Config{MaxQueue: 3})
	for i := uint32(1); i <= 5; i++ {
		f.message(t, 4, i, "", 1)
	}
	f.raw(t, storage.RXDir(4)+"/readme.txt", []byte("x"))

	require.NoError(t, f.e.LoadChannelQueue(4))
	require.Equal(t, 3, f.e.QueuedCount())
	require.Equal(t, 4, f.e.Channel())
}

func TestQueueFollowsSequenceNumbers(t *testing.T) {
	f := newFixture(t, Config{})
	f.message(t, 0, 100000, "late", 1)
	f.message(t, 0, 99999, "early", 1)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	require.Equal(t, "MSG_99999_from_early.opus", f.e.CurrentFileName())

	require.True(t, f.e.SkipToNext())
	require.Equal(t, "MSG_100000_from_late.opus", f.e.CurrentFileName())
}

func TestFeedLoopIsCapped(t *testing.T) {
	f := newFixture(t, Config{})
	f.message(t, 0, 1, "", samples(100, 1)...)

	require.NoError(t, f.e.LoadChannelQueue(0))
	require.True(t, f.e.StartPlayback())
	require.True(t, f.e.ProcessPlayback(f.sink.Sink()))
	require.LessOrEqual(t, f.sink.Len(), FeedIterations)
	require.Equal(t, codec.Duration(2), f.e.Position())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "playing", StatePlaying.String())
	require.Equal(t, "paused", StatePaused.String())
}
