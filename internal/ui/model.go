// ABOUTME: Bubbletea model for the handset simulator TUI
// ABOUTME: Renders device status and turns keys into device commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/songbird-audio/voicechat-go/internal/device"
)

var (
	recordingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	playingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Model represents the TUI state
type Model struct {
	status device.Status
	stats  device.Stats

	showUsers bool

	controls *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderChannel()
	if m.showUsers {
		s += m.renderUsers()
	}
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

// renderHeader renders link and storage status
func (m Model) renderHeader() string {
	link := "Disconnected"
	if m.status.Connected {
		link = "Connected"
	}

	storage := "ok"
	switch m.status.Storage {
	case device.StorageAbsent:
		storage = warningStyle.Render("no card")
	case device.StorageFull:
		storage = warningStyle.Render("card full")
	}

	return fmt.Sprintf(`┌─ VoiceChat ──────────────────────────────────────────┐
│ Device: %-45s │
│ Link:   %-45s │
│ Card:   %s
├──────────────────────────────────────────────────────┤
`, truncate(m.status.Name, 45), link, storage)
}

// renderChannel renders the channel, mode and message progress
func (m Model) renderChannel() string {
	st := m.status

	channel := fmt.Sprintf("Channel %d/%d", st.Channel+1, st.Channels)
	if st.Switching {
		channel = "» " + channel
	}
	if st.Muted {
		channel += "  [muted]"
	}

	s := fmt.Sprintf("│ %-52s │\n", channel)
	s += fmt.Sprintf("│ Queued: %-44d │\n", st.Queued)
	s += "│                                                      │\n"

	switch st.Mode {
	case device.ModeRecording:
		s += "│ " + recordingStyle.Render(fmt.Sprintf("● REC %s", formatDuration(st.Recorded))) + "\n"
	case device.ModePlaying, device.ModePaused:
		label := "▶"
		if st.Mode == device.ModePaused {
			label = "⏸"
		}
		from := st.Sender
		if from == "" {
			from = "unknown"
		}
		s += "│ " + playingStyle.Render(fmt.Sprintf("%s from %s", label, truncate(from, 31))) + "\n"
		s += fmt.Sprintf("│ [%s] %s / %s\n",
			renderBar(int(st.Position.Milliseconds()), int(st.FileDuration.Milliseconds()), 20),
			formatDuration(st.Position), formatDuration(st.FileDuration))
	case device.ModeError:
		s += "│ " + warningStyle.Render("Error: "+truncate(st.LastError, 44)) + "\n"
	default:
		s += fmt.Sprintf("│ %-52s │\n", strings.ToUpper(st.Mode.String()))
	}

	return s
}

// renderUsers renders the bridge roster
func (m Model) renderUsers() string {
	s := "├──────────────────────────────────────────────────────┤\n"
	if len(m.status.Users) == 0 {
		return s + "│ No users online                                      │\n"
	}
	for _, u := range m.status.Users {
		s += fmt.Sprintf("│   %-50s │\n", truncate(u, 50))
	}
	return s
}

// renderStats renders link and engine counters
func (m Model) renderStats() string {
	link := m.stats.Link
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ RX files: %-6d TX files: %-6d Errors: %-10d │
│ Played: %-8d Bad frames: %-8d Overruns: %-4d │
`, link.FilesReceived, link.FilesSent, m.stats.RecordingFailures+m.stats.SendFailures,
		m.stats.Playback.Played, link.InvalidFrames+link.Desyncs, m.stats.MicOverruns)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Talk ←/→:Channel s:Skip m:Mute p:Pause r:Replay │
│ u:Users  q:Quit                                      │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case " ", "space":
		m.controls.send(device.CmdTalkToggle)
	case "right":
		m.controls.send(device.CmdNextChannel)
	case "left":
		m.controls.send(device.CmdPrevChannel)
	case "s":
		m.controls.send(device.CmdSkip)
	case "m":
		m.controls.send(device.CmdToggleMute)
	case "p":
		m.controls.send(device.CmdTogglePause)
	case "r":
		m.controls.send(device.CmdReplay)
	case "u":
		m.showUsers = !m.showUsers
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.status = msg.Status
	m.stats = msg.Stats
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Status device.Status
	Stats  device.Stats
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	return fmt.Sprintf("%d.%ds", int(d.Seconds()), int(d.Milliseconds()/100)%10)
}
