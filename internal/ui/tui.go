// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the simulator UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/songbird-audio/voicechat-go/internal/device"
)

// Controls carries key presses out of the TUI
type Controls struct {
	Commands chan device.Command
	Quit     chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan device.Command, 16),
		Quit:     make(chan struct{}, 1),
	}
}

func (c *Controls) send(cmd device.Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls) Model {
	return Model{
		controls: ctrl,
	}
}

// Run creates the TUI program; the caller starts it and feeds it StatusMsg
func Run(ctrl *Controls) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
