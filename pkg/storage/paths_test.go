// ABOUTME: Tests for message path helpers
// ABOUTME: Covers formatting, sanitizing, length bounds and name parsing
package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTXPath(t *testing.T) {
	p, err := TXPath(42, 2)
	require.NoError(t, err)
	require.Equal(t, "/TX/MSG_00042_CH3.opus", p)
}

func TestRXPath(t *testing.T) {
	tests := []struct {
		name    string
		channel int
		seq     uint32
		sender  string
		want    string
	}{
		{"anonymous", 0, 1, "", "/RX/CH1/MSG_00001.opus"},
		{"named", 4, 12, "Alice", "/RX/CH5/MSG_00012_from_Alice.opus"},
		{"sanitized", 1, 3, "a/b c", "/RX/CH2/MSG_00003_from_a_b_c.opus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RXPath(tt.channel, tt.seq, tt.sender)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRXPathTruncatesSender(t *testing.T) {
	sender := strings.Repeat("x", 31)
	p, err := RXPath(0, 99999, sender)
	require.NoError(t, err)
	require.LessOrEqual(t, len(p), MaxPathLen)
	require.True(t, strings.HasSuffix(p, Extension))
	require.Contains(t, p, "_from_xxx")
}

func TestParseSequence(t *testing.T) {
	tests := []struct {
		name string
		want uint32
		ok   bool
	}{
		{"MSG_00017_CH1.opus", 17, true},
		{"/RX/CH1/MSG_00005_from_bob.opus", 5, true},
		{"MSG_123456.opus", 123456, true},
		{"MSG_.opus", 0, false},
		{"MSG_00001.wav", 0, false},
		{"notes.opus", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSequence(tt.name)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSenderFromName(t *testing.T) {
	require.Equal(t, "Alice", SenderFromName("/RX/CH1/MSG_00001_from_Alice.opus"))
	require.Equal(t, "a_from_b", SenderFromName("MSG_00001_from_a_from_b.opus"))
	require.Equal(t, UnknownSender, SenderFromName("MSG_00001.opus"))
	require.Equal(t, UnknownSender, SenderFromName("MSG_00001_from_.opus"))
}

func TestIsMessage(t *testing.T) {
	require.True(t, IsMessage("/RX/CH1/MSG_00001.opus"))
	require.False(t, IsMessage("/RX/CH1/readme.txt"))
}

func TestSortMessagesBySequence(t *testing.T) {
	names := []string{
		"MSG_100000_from_b.opus",
		"notes.opus",
		"MSG_99999_from_a.opus",
		"MSG_00002.opus",
	}
	SortMessages(names)
	require.Equal(t, []string{
		"MSG_00002.opus",
		"MSG_99999_from_a.opus",
		"MSG_100000_from_b.opus",
		"notes.opus",
	}, names)
}

func TestPartialPath(t *testing.T) {
	p, err := RXPath(0, 7, "alice")
	require.NoError(t, err)
	partial := PartialPath(p)
	require.Equal(t, "/RX/CH1/MSG_00007_from_alice.part", partial)
	require.Len(t, partial, len(p))
	require.True(t, IsPartial(partial))
	require.False(t, IsMessage(partial))
	_, ok := ParseSequence(partial)
	require.False(t, ok)
}
