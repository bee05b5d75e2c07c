// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines device blocks, block source/sink contracts and sample conversions
// Package audio provides the fundamental audio types shared by the voice pipeline.
//
// This package defines core types used throughout the device:
//   - Block: one fixed-size mono PCM buffer at the device-native rate
//   - BlockSource / BlockSink: the capture and playback queues exposed by the hardware
//   - BlockQueue: a fixed-capacity ring that implements both contracts
//
// It also provides sample conversion helpers for sources that deliver
// wider samples than the device's 16-bit path.
//
// Example:
//
//	q := audio.NewBlockQueue(8)
//	if q.Available() > 0 {
//	    blk := q.Read()
//	    process(blk[:])
//	    q.Release()
//	}
package audio
