// ABOUTME: Bridge TUI for displaying connected devices and traffic
// ABOUTME: Real-time bridge status display using bubbletea
package bridge

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// BridgeTUI manages the bridge TUI
type BridgeTUI struct {
	program  *tea.Program
	updates  chan BridgeStatus
	quitChan chan struct{}
}

// BridgeStatus holds bridge state for the TUI
type BridgeStatus struct {
	Name    string
	Port    int
	Clients []ClientInfo
	Stats   Stats
}

// ClientInfo holds device information for display
type ClientInfo struct {
	Name      string
	ID        string
	Since     time.Time
	FramesIn  uint64
	FramesOut uint64
}

type tuiModel struct {
	status    BridgeStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg BridgeStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = BridgeStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down bridge...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	clientHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("VoiceChat Bridge"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Bridge: "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n")

	st := m.status.Stats
	b.WriteString(headerStyle.Render("Traffic: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d clips, %d relayed, %d dropped, %d log lines",
		st.AudioFrames, st.RelayedFrames, st.DroppedFrames, st.LogFrames)))
	b.WriteString("\n\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Devices (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No devices connected"))
		b.WriteString("\n")
	} else {
		for _, client := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (in %d, out %d, since %s)",
				client.FramesIn, client.FramesOut, client.Since.Format("15:04:05"))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewBridgeTUI creates a new bridge TUI
func NewBridgeTUI() *BridgeTUI {
	return &BridgeTUI{
		updates:  make(chan BridgeStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until quit
func (t *BridgeTUI) Start(name string, port int) error {
	m := tuiModel{
		status: BridgeStatus{
			Name: name,
			Port: port,
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *BridgeTUI) Update(status BridgeStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *BridgeTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *BridgeTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
