// ABOUTME: Tests for the recording engine
// ABOUTME: Uses in-memory storage and fake frame codecs for deterministic packets
package recorder

import (
	"errors"
	"testing"

	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/codec"
	"github.com/songbird-audio/voicechat-go/pkg/codec/codectest"
	"github.com/songbird-audio/voicechat-go/pkg/container"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type memSequence struct {
	seq   uint32
	saved []uint32
	err   error
}

func (m *memSequence) LoadSequence() (uint32, error) { return m.seq, m.err }

func (m *memSequence) SaveSequence(seq uint32) error {
	m.saved = append(m.saved, seq)
	m.seq = seq
	return nil
}

func newEngine(t *testing.T, st *storage.Storage, cfg Config) (*Engine, *codectest.Encoder) {
	t.Helper()
	c, enc, _ := codectest.New(40)
	e, err := New(st, c, cfg)
	require.NoError(t, err)
	return e, enc
}

// feed pushes blocks through a small queue, processing as the control loop would
func feed(t *testing.T, e *Engine, blocks int) error {
	t.Helper()
	q := audio.NewBlockQueue(8)
	var blk audio.Block
	for i := range blk {
		blk[i] = int16(i * 10)
	}
	for i := 0; i < blocks; i++ {
		q.Push(&blk)
		if q.Free() == 0 || i == blocks-1 {
			if _, err := e.ProcessRecording(q.Source()); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestNewStorageUnavailable(t *testing.T) {
	st := storage.NewMemory()
	st.SetPresent(false)
	c, _, _ := codectest.New(40)

	_, err := New(st, c, Config{})
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestNewCreatesLayout(t *testing.T) {
	st := storage.NewMemory()
	e, _ := newEngine(t, st, Config{})

	require.True(t, st.Exists(storage.TXDir))
	for ch := 0; ch < storage.Channels; ch++ {
		require.True(t, st.Exists(storage.RXDir(ch)))
	}
	require.Equal(t, uint32(1), e.NextSequence())
}

func TestSequenceRecovery(t *testing.T) {
	seed := func() *storage.Storage {
		st := storage.NewMemory()
		require.NoError(t, st.MkdirAll(storage.TXDir))
		for i := uint32(1); i <= 17; i++ {
			p, err := storage.TXPath(i, int(i%5))
			require.NoError(t, err)
			f, err := st.Create(p)
			require.NoError(t, err)
			require.NoError(t, f.Close())
		}
		return st
	}

	tests := []struct {
		name      string
		persisted uint32
		want      uint32
	}{
		{"cleared counter", 0, 18},
		{"stale counter", 3, 18},
		{"ahead counter", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t, seed(), Config{Sequence: &memSequence{seq: tt.persisted}})
			require.GreaterOrEqual(t, e.NextSequence(), uint32(18))
			require.Equal(t, tt.want, e.NextSequence())
		})
	}
}

func TestRecordOneMessage(t *testing.T) {
	st := storage.NewMemory()
	seq := &memSequence{}
	e, enc := newEngine(t, st, Config{Sequence: seq})

	require.False(t, e.StopRecording())
	require.NoError(t, e.StartRecording(2))
	require.True(t, e.IsRecording())
	require.Equal(t, "/TX/MSG_00001_CH3.opus", e.CurrentPath())
	require.Equal(t, 2, e.CurrentChannel())
	require.Equal(t, 1, enc.Resets)

	require.ErrorIs(t, e.StartRecording(0), ErrAlreadyRecording)

	// 150 frames need 150*883 samples
	blocks := (150*codec.EncodeInputSamples + audio.BlockSamples - 1) / audio.BlockSamples
	require.NoError(t, feed(t, e, blocks))
	require.Equal(t, 150, e.PacketCount())

	require.True(t, e.StopRecording())
	require.False(t, e.IsRecording())
	require.Equal(t, int64(3000), e.Duration().Milliseconds())
	require.Equal(t, container.Size(repeat(40, 150)...), e.BytesWritten())
	require.Equal(t, uint32(2), e.NextSequence())
	require.Equal(t, []uint32{2}, seq.saved)

	f, err := st.Open("/TX/MSG_00001_CH3.opus")
	require.NoError(t, err)
	r, err := container.Open(f, 0)
	require.NoError(t, err)
	require.Equal(t, 150, r.PacketCount())
	require.False(t, r.Corrupt())
	require.NoError(t, r.Close())

	require.NoError(t, e.StartRecording(0))
	require.Equal(t, "/TX/MSG_00002_CH1.opus", e.CurrentPath())
	require.Zero(t, e.PacketCount())
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestProcessWhenIdle(t *testing.T) {
	e, _ := newEngine(t, storage.NewMemory(), Config{})
	q := audio.NewBlockQueue(2)
	var blk audio.Block
	q.Push(&blk)

	ok, err := e.ProcessRecording(q.Source())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, q.Len(), "idle engine must not drain the source")
}

func TestStartRecordingStorageRemoved(t *testing.T) {
	st := storage.NewMemory()
	e, _ := newEngine(t, st, Config{})

	st.SetPresent(false)
	require.ErrorIs(t, e.StartRecording(0), ErrStorageUnavailable)
	require.ErrorIs(t, e.LastError(), ErrStorageUnavailable)
	require.False(t, e.IsRecording())
}

func TestStartRecordingInvalidChannel(t *testing.T) {
	e, _ := newEngine(t, storage.NewMemory(), Config{})
	require.ErrorIs(t, e.StartRecording(storage.Channels), ErrInvalidChannel)
	require.ErrorIs(t, e.StartRecording(-1), ErrInvalidChannel)
}

func TestStartRecordingCreateFails(t *testing.T) {
	st := storage.New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	e, _ := newEngine(t, st, Config{})

	err := e.StartRecording(0)
	require.ErrorIs(t, err, ErrFileCreate)
	require.False(t, e.IsRecording())
}

func TestStartRecordingFull(t *testing.T) {
	st := storage.NewMemory()
	e, _ := newEngine(t, st, Config{})
	st.SetCapacity(1)

	// header write runs out of room
	require.ErrorIs(t, e.StartRecording(0), ErrStorageFull)
	require.False(t, e.IsRecording())

	// card now reports full before the file is created
	require.ErrorIs(t, e.StartRecording(0), ErrStorageFull)
	require.Equal(t, uint32(1), e.NextSequence())
}

func TestWriteFailureKeepsPartialFile(t *testing.T) {
	st := storage.NewMemory()
	e, _ := newEngine(t, st, Config{})

	// Room for the header and two 40-byte packets
	st.SetCapacity(int64(container.Size(40, 40)))
	require.NoError(t, e.StartRecording(1))
	path := e.CurrentPath()

	err := feed(t, e, 40)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWriteFailed)
	require.ErrorIs(t, err, ErrStorageFull)
	require.False(t, e.IsRecording())
	require.True(t, st.Exists(path), "partial file must be retained")
	require.Equal(t, 2, e.PacketCount())

	require.ErrorIs(t, e.LastError(), ErrWriteFailed)
	e.ClearError()
	require.NoError(t, e.LastError())
}

func TestFullCardLeavesWholePackets(t *testing.T) {
	st := storage.NewMemory()
	e, _ := newEngine(t, st, Config{})

	// the card fills twenty bytes into the third packet
	st.SetCapacity(container.Size(40, 40) + 20)
	require.NoError(t, e.StartRecording(0))
	path := e.CurrentPath()

	err := feed(t, e, 40)
	require.ErrorIs(t, err, ErrStorageFull)
	require.False(t, e.IsRecording())
	require.Equal(t, 2, e.PacketCount())
	require.Equal(t, container.Size(40, 40), e.BytesWritten())

	info, err := st.Stat(path)
	require.NoError(t, err)
	require.Equal(t, container.Size(40, 40), info.Size())

	f, err := st.Open(path)
	require.NoError(t, err)
	r, err := container.Open(f, container.DefaultMaxPacket)
	require.NoError(t, err)
	defer r.Close()
	require.False(t, r.Corrupt())
	require.Equal(t, 2, r.PacketCount())
}

func TestEncodeFailureStopsRecording(t *testing.T) {
	st := storage.NewMemory()
	e, enc := newEngine(t, st, Config{})
	enc.FailAfter = 3

	require.NoError(t, e.StartRecording(0))
	err := feed(t, e, 40)
	require.True(t, errors.Is(err, ErrWriteFailed))
	require.True(t, errors.Is(err, codec.ErrEncode))
	require.False(t, e.IsRecording())
	require.Equal(t, 3, e.PacketCount())
	require.Equal(t, uint32(2), e.NextSequence())
}
