// ABOUTME: Audio decoder package for packets and file streams
// ABOUTME: Provides Opus and PCM packet decoders plus MP3, FLAC and WAV stream readers
// Package decode provides audio decoders.
//
// Packet decoders (Opus, PCM) implement Decoder and write int16 samples
// into a caller-provided buffer. File decoders (MP3, FLAC, WAV) implement
// Stream and yield interleaved int16 samples until io.EOF.
//
// Example:
//
//	dec, err := decode.NewOpus(audio.Format{Codec: "opus", SampleRate: 16000, Channels: 1})
//	n, err := dec.Decode(packet, frame[:])
package decode
