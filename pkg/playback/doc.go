// ABOUTME: Playback engine package
// ABOUTME: Plays a channel's received messages in order and deletes each once heard
// Package playback streams received messages for one channel to an
// audio.BlockSink. Files play oldest first; a finished, corrupt or
// unopenable file is deleted and the next one starts, so a bad file
// never wedges the queue. Position is derived from packets decoded,
// never from wall-clock time.
package playback
