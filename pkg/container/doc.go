// ABOUTME: Voice message container package
// ABOUTME: Defines the on-card file format for recorded and received messages
// Package container implements the message file format:
//
//	"OPUS" 0x01 0x00                  header
//	[u16 little-endian length][bytes] repeated, 1..256 bytes each
//
// There is no index. Readers recover the packet count with one forward
// scan at open; writers flush every 50 packets rather than on each write.
package container
