// ABOUTME: Audio encoder package for compressing codec-rate PCM frames
// ABOUTME: Provides the Encoder interface and the Opus voice implementation
// Package encode provides frame encoders for the voice codec.
//
// Encoders take exactly one frame of mono int16 samples at the codec
// rate and write one compressed packet into a caller-provided buffer,
// so the hot path never allocates.
//
// Example:
//
//	enc, err := encode.NewOpus(encode.DefaultOpusConfig())
//	n, err := enc.Encode(frame, packet[:])
package encode
