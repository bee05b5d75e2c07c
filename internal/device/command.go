// ABOUTME: User commands delivered to the control loop from other goroutines
// ABOUTME: Button presses on the device, key presses in the simulator
package device

// Command is one user action
type Command int

const (
	CmdTalkStart Command = iota
	CmdTalkStop
	CmdTalkToggle
	CmdNextChannel
	CmdPrevChannel
	CmdSkip
	CmdToggleMute
	CmdTogglePause
	CmdReplay
)

func (c Command) String() string {
	switch c {
	case CmdTalkStart:
		return "talk-start"
	case CmdTalkStop:
		return "talk-stop"
	case CmdTalkToggle:
		return "talk-toggle"
	case CmdNextChannel:
		return "next-channel"
	case CmdPrevChannel:
		return "prev-channel"
	case CmdSkip:
		return "skip"
	case CmdToggleMute:
		return "toggle-mute"
	case CmdTogglePause:
		return "toggle-pause"
	case CmdReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// Post queues cmd for the next Tick. Returns false when the queue is full.
func (d *Device) Post(cmd Command) bool {
	select {
	case d.commands <- cmd:
		return true
	default:
		return false
	}
}

func (d *Device) handle(cmd Command) {
	// any user action acknowledges a sticky recording error
	d.rec.ClearError()
	d.lastErr = nil

	switch cmd {
	case CmdTalkStart:
		d.PressTalk()
	case CmdTalkStop:
		d.ReleaseTalk()
	case CmdTalkToggle:
		if d.rec.IsRecording() {
			d.ReleaseTalk()
		} else {
			d.PressTalk()
		}
	case CmdNextChannel:
		d.SwitchChannel(1)
	case CmdPrevChannel:
		d.SwitchChannel(-1)
	case CmdSkip:
		d.Skip()
	case CmdToggleMute:
		d.SetMuted(!d.muted)
	case CmdTogglePause:
		d.TogglePause()
	case CmdReplay:
		d.playChannel()
	}
}
