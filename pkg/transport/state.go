// ABOUTME: Receive state machine states
// ABOUTME: One state per header field plus data, discard and log payload states
package transport

type rxState int

const (
	stateWaitSync1 rxState = iota
	stateWaitSync2
	stateReadLength
	stateReadSelector
	stateReadMsgType
	stateReadUsernameLen
	stateReadUsername
	stateReadData
	stateDiscardData
	stateReadLog
)

func (s rxState) String() string {
	switch s {
	case stateWaitSync1:
		return "wait-sync1"
	case stateWaitSync2:
		return "wait-sync2"
	case stateReadLength:
		return "read-length"
	case stateReadSelector:
		return "read-selector"
	case stateReadMsgType:
		return "read-msgtype"
	case stateReadUsernameLen:
		return "read-username-len"
	case stateReadUsername:
		return "read-username"
	case stateReadData:
		return "read-data"
	case stateDiscardData:
		return "discard-data"
	case stateReadLog:
		return "read-log"
	default:
		return "unknown"
	}
}
