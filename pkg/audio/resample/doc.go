// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts fixed-size frames between the device and codec sample rates
// Package resample provides frame-based sample rate conversion.
//
// Uses integer linear interpolation so results are identical on every
// platform. Each call converts one frame; the last emitted input sample
// is carried across calls and used when an output position falls past
// the end of the input.
//
// Example:
//
//	down := resample.New(44100, 16000)
//	n := down.Resample(block883, frame320)
package resample
