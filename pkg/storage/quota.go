// ABOUTME: Capacity-limited file wrapper that fails writes with ENOSPC
// ABOUTME: Emulates a full card without touching the host filesystem
package storage

import (
	"fmt"
	"syscall"

	"github.com/spf13/afero"
)

type quotaFile struct {
	afero.File
	storage *Storage
}

func (f *quotaFile) remaining() int64 {
	return f.storage.capacity - f.storage.used
}

func (f *quotaFile) Write(p []byte) (int, error) {
	if f.storage.capacity == 0 {
		return f.File.Write(p)
	}

	allowed := f.remaining()
	if allowed <= 0 {
		return 0, fmt.Errorf("write %s: %w", f.Name(), ErrFull)
	}

	short := false
	if int64(len(p)) > allowed {
		p = p[:allowed]
		short = true
	}

	n, err := f.File.Write(p)
	f.storage.used += int64(n)
	if err != nil {
		return n, err
	}
	if short {
		return n, fmt.Errorf("write %s: %w: %w", f.Name(), ErrFull, syscall.ENOSPC)
	}
	return n, nil
}

func (f *quotaFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *quotaFile) WriteAt(p []byte, off int64) (int, error) {
	if f.storage.capacity > 0 && f.remaining() < int64(len(p)) {
		return 0, fmt.Errorf("write %s: %w", f.Name(), ErrFull)
	}
	n, err := f.File.WriteAt(p, off)
	f.storage.used += int64(n)
	return n, err
}

// Truncate keeps the card usage in step with the file size
func (f *quotaFile) Truncate(size int64) error {
	info, err := f.File.Stat()
	if err != nil {
		return err
	}
	if err := f.File.Truncate(size); err != nil {
		return err
	}
	f.storage.used += size - info.Size()
	return nil
}
