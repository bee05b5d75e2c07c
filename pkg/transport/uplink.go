// ABOUTME: Parser for frames sent by a device to the bridge
// ABOUTME: Uplink audio frames carry no username; log frames carry text
package transport

// Frame is one parsed uplink frame
type Frame struct {
	Selector byte
	Payload  []byte
}

// IsLog reports whether the frame is a diagnostic line
func (f Frame) IsLog() bool {
	return f.Selector == SelectorLog
}

// UplinkParser reassembles device frames from arbitrary chunks
type UplinkParser struct {
	state    rxState
	length   uint32
	lenPos   int
	selector byte
	payload  []byte

	Desyncs uint64
	Invalid uint64
}

// Feed parses p and returns the frames completed by it
func (u *UplinkParser) Feed(p []byte) []Frame {
	var frames []Frame
	for _, b := range p {
		if f, ok := u.push(b); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func (u *UplinkParser) push(b byte) (Frame, bool) {
	switch u.state {
	case stateWaitSync1:
		if b == SyncByte1 {
			u.state = stateWaitSync2
		}

	case stateWaitSync2:
		switch b {
		case SyncByte2:
			u.length = 0
			u.lenPos = 0
			u.state = stateReadLength
		case SyncByte1:
		default:
			u.Desyncs++
			u.state = stateWaitSync1
		}

	case stateReadLength:
		u.length |= uint32(b) << (8 * u.lenPos)
		u.lenPos++
		if u.lenPos == 4 {
			if u.length == 0 || u.length > MaxFrameLength {
				u.Invalid++
				u.state = stateWaitSync1
				return Frame{}, false
			}
			u.state = stateReadSelector
		}

	case stateReadSelector:
		u.selector = b
		if b == SelectorControl || (b == SelectorLog && u.length > MaxLogLength) {
			u.Invalid++
			u.state = stateWaitSync1
			return Frame{}, false
		}
		u.payload = make([]byte, 0, u.length)
		u.state = stateReadData

	case stateReadData:
		u.payload = append(u.payload, b)
		if uint32(len(u.payload)) == u.length {
			u.state = stateWaitSync1
			f := Frame{Selector: u.selector, Payload: u.payload}
			u.payload = nil
			return f, true
		}
	}
	return Frame{}, false
}
