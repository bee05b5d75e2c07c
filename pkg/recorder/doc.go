// ABOUTME: Recording engine package
// ABOUTME: Turns push-to-talk audio into numbered TX message files
// Package recorder captures device blocks, compresses them through the
// codec engine and writes them to /TX/MSG_NNNNN_CHn.opus. Sequence
// numbers never regress across restarts: the next number is recovered
// from the files already on the card as well as from a SequenceStore.
package recorder
