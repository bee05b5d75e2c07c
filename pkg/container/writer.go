// ABOUTME: Container writer appending length-prefixed packets
// ABOUTME: Flushes every N packets to bound data loss without syncing each write
package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// WriterOptions tune a Writer; zero values select defaults
type WriterOptions struct {
	MaxPacket int
	SyncEvery int
}

// rewinder is implemented by files that can drop a partially written packet
type rewinder interface {
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// Writer appends packets to a container file. A failed WritePacket leaves
// the file ending on the last complete packet when the file can be truncated.
type Writer struct {
	f         WriteFile
	maxPacket int
	syncEvery int

	prefix  [PacketOverhead]byte
	packets int
	written int64
	closed  bool
}

// NewWriter writes the header to f and returns a writer for its packets
func NewWriter(f WriteFile, opts WriterOptions) (*Writer, error) {
	if opts.MaxPacket <= 0 {
		opts.MaxPacket = DefaultMaxPacket
	}
	if opts.SyncEvery <= 0 {
		opts.SyncEvery = DefaultSyncEvery
	}

	if _, err := f.Write(Header[:]); err != nil {
		return nil, fmt.Errorf("write container header: %w", err)
	}

	return &Writer{
		f:         f,
		maxPacket: opts.MaxPacket,
		syncEvery: opts.SyncEvery,
		written:   HeaderSize,
	}, nil
}

// WritePacket appends one packet
func (w *Writer) WritePacket(p []byte) error {
	if w.closed {
		return ErrClosed
	}
	if len(p) == 0 || len(p) > w.maxPacket {
		return fmt.Errorf("%w: %d bytes", ErrPacketSize, len(p))
	}

	start := w.written
	binary.LittleEndian.PutUint16(w.prefix[:], uint16(len(p)))
	n, err := w.f.Write(w.prefix[:])
	w.written += int64(n)
	if err != nil {
		return w.rollback(start, fmt.Errorf("write packet length: %w", err))
	}

	n, err = w.f.Write(p)
	w.written += int64(n)
	if err != nil {
		return w.rollback(start, fmt.Errorf("write packet data: %w", err))
	}

	w.packets++

	if w.packets%w.syncEvery == 0 {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("sync container: %w", err)
		}
	}

	return nil
}

// rollback truncates the file back to size after a partial packet write
func (w *Writer) rollback(size int64, cause error) error {
	if w.written == size {
		return cause
	}
	r, ok := w.f.(rewinder)
	if !ok {
		return cause
	}
	if err := r.Truncate(size); err != nil {
		return fmt.Errorf("%w (truncate: %v)", cause, err)
	}
	if _, err := r.Seek(size, io.SeekStart); err != nil {
		return fmt.Errorf("%w (seek: %v)", cause, err)
	}
	w.written = size
	return cause
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	syncErr := w.f.Sync()
	closeErr := w.f.Close()
	if syncErr != nil {
		return fmt.Errorf("sync container: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close container: %w", closeErr)
	}
	return nil
}

// Packets returns the number of packets written
func (w *Writer) Packets() int {
	return w.packets
}

// BytesWritten returns header plus packet bytes written
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// Duration returns the audio time written so far
func (w *Writer) Duration() time.Duration {
	return Duration(w.packets)
}
