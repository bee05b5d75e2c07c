// ABOUTME: Removable message storage package
// ABOUTME: Wraps an afero filesystem with presence, capacity and message path rules
// Package storage models the removable card that holds recorded and
// received messages.
//
// A Storage can be backed by an OS directory or by memory. It can be
// marked absent to emulate a pulled card and given a byte capacity to
// emulate a full one; both surface as the sentinel errors ErrUnavailable
// and ErrFull so callers can report them distinctly.
//
// Layout:
//
//	/TX/MSG_00001_CH1.opus            outgoing recordings
//	/RX/CH1/MSG_00001_from_Alice.opus received messages, one dir per channel
package storage
