// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering helpers
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/songbird-audio/voicechat-go/internal/device"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.status.Connected {
		t.Error("expected connected to be false initially")
	}

	if model.showUsers {
		t.Error("expected users list hidden initially")
	}
}

func TestStatusMsgReplacesStatus(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Status: device.Status{
		Name:      "handset-1",
		Connected: true,
		Channel:   2,
		Channels:  5,
	}})

	if !model.status.Connected {
		t.Error("expected connected to be true after status update")
	}
	if model.status.Channel != 2 {
		t.Errorf("expected channel 2, got %d", model.status.Channel)
	}

	model.applyStatus(StatusMsg{Status: device.Status{Channels: 5}})
	if model.status.Connected {
		t.Error("expected connected to be false after disconnect")
	}
}

func TestKeysPostCommands(t *testing.T) {
	ctrl := NewControls()
	model := NewModel(ctrl)

	tests := []struct {
		key      tea.KeyMsg
		expected device.Command
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, device.CmdTalkToggle},
		{tea.KeyMsg{Type: tea.KeyRight}, device.CmdNextChannel},
		{tea.KeyMsg{Type: tea.KeyLeft}, device.CmdPrevChannel},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}, device.CmdSkip},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}}, device.CmdToggleMute},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}, device.CmdTogglePause},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}, device.CmdReplay},
	}

	for _, tt := range tests {
		model.Update(tt.key)
		select {
		case got := <-ctrl.Commands:
			if got != tt.expected {
				t.Errorf("key %q: expected %v, got %v", tt.key.String(), tt.expected, got)
			}
		default:
			t.Errorf("key %q: no command posted", tt.key.String())
		}
	}
}

func TestUsersKeyTogglesRoster(t *testing.T) {
	model := NewModel(nil)
	model.width = 80
	model.applyStatus(StatusMsg{Status: device.Status{Users: []string{"alice", "bob"}, Channels: 5}})

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	m := updated.(Model)
	if !m.showUsers {
		t.Fatal("expected users list shown")
	}

	view := m.View()
	if !strings.Contains(view, "alice") || !strings.Contains(view, "bob") {
		t.Errorf("expected roster in view, got:\n%s", view)
	}
}

func TestQuitKey(t *testing.T) {
	ctrl := NewControls()
	model := NewModel(ctrl)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestViewShowsStorageProblems(t *testing.T) {
	tests := []struct {
		storage  device.StorageStatus
		expected string
	}{
		{device.StorageAbsent, "no card"},
		{device.StorageFull, "card full"},
	}

	for _, tt := range tests {
		model := NewModel(nil)
		model.width = 80
		model.applyStatus(StatusMsg{Status: device.Status{Storage: tt.storage, Mode: device.ModeError, Channels: 5}})
		if view := model.View(); !strings.Contains(view, tt.expected) {
			t.Errorf("storage %v: expected %q in view", tt.storage, tt.expected)
		}
	}
}

func TestViewShowsRecording(t *testing.T) {
	model := NewModel(nil)
	model.width = 80
	model.applyStatus(StatusMsg{Status: device.Status{
		Mode:     device.ModeRecording,
		Recorded: 1500 * time.Millisecond,
		Channels: 5,
	}})

	if view := model.View(); !strings.Contains(view, "REC 1.5s") {
		t.Errorf("expected recording indicator, got:\n%s", view)
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	if got := renderBar(5, 10, 4); got != "██░░" {
		t.Errorf("expected half bar, got %q", got)
	}
	if got := renderBar(5, 0, 4); got != "░░░░" {
		t.Errorf("expected empty bar for zero max, got %q", got)
	}
}
