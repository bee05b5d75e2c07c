// ABOUTME: Audio output package for playing device blocks
// ABOUTME: Provides the Output interface with Oto and null implementations
// Package output provides speaker sinks for the playback engine.
//
// Every Output is an audio.BlockSink: the control loop fills blocks
// without blocking and a backend goroutine drains them. Underruns are
// filled with silence.
//
// Example:
//
//	out := output.NewOto(8)
//	err := out.Open(audio.DeviceSampleRate)
//	playback.ProcessPlayback(out)
package output
