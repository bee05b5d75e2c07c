// ABOUTME: Voice codec engine package
// ABOUTME: Bridges device-rate blocks and compressed 20 ms voice packets
// Package codec turns 44.1 kHz device blocks into compressed voice
// packets and back.
//
// Samples accumulate until one codec frame's worth of device audio is
// present, then that frame is downsampled to 16 kHz and compressed.
// Decoding reverses the path, upsampling each 320-sample frame to 882
// device samples. All buffers are fixed-size and owned by the Engine;
// it is not safe for concurrent use.
//
// Example:
//
//	c, err := codec.New(codec.DefaultConfig())
//	c.AddSamples(block[:])
//	for c.HasEncodedPacket() {
//		n, _ := c.EncodedPacket(packet[:])
//		writer.WritePacket(packet[:n])
//	}
package codec
