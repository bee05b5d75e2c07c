// ABOUTME: Container reader with a single validating scan on open
// ABOUTME: Streams packets after rewinding to the first packet offset
package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Reader streams packets from a container file
type Reader struct {
	f         ReadFile
	br        *bufio.Reader
	maxPacket int

	packetCount int
	corrupt     bool

	buf    []byte
	read   int
	closed bool
}

// Open validates the header, scans every packet once to count them, then
// rewinds to the first packet. A bad length or truncated payload ends the
// scan and marks the file corrupt; packets before it remain playable.
func Open(f ReadFile, maxPacket int) (*Reader, error) {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if hdr != Header {
		return nil, fmt.Errorf("%w: % x", ErrBadHeader, hdr[:])
	}

	r := &Reader{
		f:         f,
		br:        bufio.NewReaderSize(f, 4096),
		maxPacket: maxPacket,
		buf:       make([]byte, maxPacket),
	}

	if err := r.scan(); err != nil {
		return nil, err
	}

	if _, err := f.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind container: %w", err)
	}
	r.br.Reset(f)

	return r, nil
}

func (r *Reader) scan() error {
	for {
		size, err := r.readLength()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrCorrupt) {
				r.corrupt = true
				return nil
			}
			return err
		}

		if _, err := r.br.Discard(size); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				r.corrupt = true
				return nil
			}
			return fmt.Errorf("scan container: %w", err)
		}
		r.packetCount++
	}
}

// readLength returns io.EOF at a clean packet boundary
func (r *Reader) readLength() (int, error) {
	var prefix [PacketOverhead]byte
	n, err := io.ReadFull(r.br, prefix[:])
	if err == io.EOF {
		return 0, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w: truncated length after %d bytes", ErrCorrupt, n)
	}
	if err != nil {
		return 0, fmt.Errorf("read packet length: %w", err)
	}

	size := int(binary.LittleEndian.Uint16(prefix[:]))
	if size == 0 || size > r.maxPacket {
		return 0, fmt.Errorf("%w: length %d", ErrCorrupt, size)
	}
	return size, nil
}

// Next returns the next packet. The slice is reused by the following call.
// Returns io.EOF at a clean end and ErrCorrupt on a bad length or short read.
func (r *Reader) Next() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	size, err := r.readLength()
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r.br, r.buf[:size]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated payload", ErrCorrupt)
		}
		return nil, fmt.Errorf("read packet data: %w", err)
	}

	r.read++
	return r.buf[:size], nil
}

// PacketCount returns the packets found by the scan
func (r *Reader) PacketCount() int {
	return r.packetCount
}

// PacketsRead returns the packets returned by Next so far
func (r *Reader) PacketsRead() int {
	return r.read
}

// Duration returns the scanned audio time
func (r *Reader) Duration() time.Duration {
	return Duration(r.packetCount)
}

// Corrupt reports whether the scan stopped at a bad packet
func (r *Reader) Corrupt() bool {
	return r.corrupt
}

// Close closes the file
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
