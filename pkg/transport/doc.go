// ABOUTME: Device-to-bridge transport package
// ABOUTME: Sync-byte framing, receive state machine, presence roster and liveness
// Package transport exchanges message files, presence and diagnostics
// with the bridge over any byte stream.
//
// Every frame is
//
//	[0xAA][0x55][length u32 LE][selector][payload]
//
// Selectors 0..N-1 carry audio for a channel, 0xFF carries a control
// message (join, part, ping) and 0xFE a diagnostic log line. Audio
// frames sent by the bridge carry the sender's username ahead of the
// file bytes; frames sent by the device do not.
//
// The receiver consumes one byte per state-machine step and never
// blocks. A bad length drops the machine back to sync search, so one
// corrupted frame costs at most one message.
package transport
