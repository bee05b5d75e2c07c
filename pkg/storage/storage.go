// ABOUTME: Storage type over afero with presence toggle and error classification
// ABOUTME: All file access by the engines goes through this type
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"syscall"

	"github.com/spf13/afero"
)

var (
	// ErrUnavailable means the card is absent or unreadable
	ErrUnavailable = errors.New("storage unavailable")

	// ErrFull means the card has no space left
	ErrFull = errors.New("storage full")

	// ErrPathTooLong means a generated path exceeds MaxPathLen
	ErrPathTooLong = errors.New("storage path too long")
)

// File is an open file on the card
type File = afero.File

// Storage is the message card. It is not safe for concurrent use.
type Storage struct {
	fs       afero.Fs
	present  bool
	capacity int64 // 0 means unlimited
	used     int64
}

// New wraps an existing filesystem
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs, present: true}
}

// NewDir stores messages under root on the host filesystem
func NewDir(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewMemory returns an empty in-memory card
func NewMemory() *Storage {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying filesystem
func (s *Storage) Fs() afero.Fs {
	return s.fs
}

// Available reports whether the card is inserted and readable
func (s *Storage) Available() bool {
	if !s.present {
		return false
	}
	_, err := s.fs.Stat("/")
	return err == nil
}

// SetPresent inserts or removes the card
func (s *Storage) SetPresent(present bool) {
	s.present = present
}

// SetCapacity limits total stored bytes; 0 removes the limit
func (s *Storage) SetCapacity(bytes int64) {
	if bytes < 0 {
		bytes = 0
	}
	s.capacity = bytes
}

// Capacity returns the byte limit, 0 when unlimited
func (s *Storage) Capacity() int64 {
	return s.capacity
}

// Usage returns the total size of all stored files
func (s *Storage) Usage() (int64, error) {
	if !s.Available() {
		return 0, ErrUnavailable
	}
	var total int64
	err := afero.Walk(s.fs, "/", func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, s.classify(err)
	}
	return total, nil
}

// Full reports whether a capacity is set and reached
func (s *Storage) Full() bool {
	if s.capacity == 0 {
		return false
	}
	used, err := s.Usage()
	return err == nil && used >= s.capacity
}

// Create creates or truncates a file for writing
func (s *Storage) Create(name string) (File, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if len(name) > MaxPathLen {
		return nil, fmt.Errorf("%w: %s", ErrPathTooLong, name)
	}

	if s.capacity > 0 {
		used, err := s.Usage()
		if err != nil {
			return nil, err
		}
		if used >= s.capacity {
			return nil, fmt.Errorf("create %s: %w", name, ErrFull)
		}
		s.used = used
	}

	f, err := s.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, s.classify(err))
	}

	if s.capacity > 0 {
		return &quotaFile{File: f, storage: s}, nil
	}
	return f, nil
}

// Open opens a file for reading
func (s *Storage) Open(name string) (File, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, s.classify(err))
	}
	return f, nil
}

// Remove deletes a file
func (s *Storage) Remove(name string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if err := s.fs.Remove(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, s.classify(err))
	}
	return nil
}

// Rename moves oldName to newName, replacing newName if it exists
func (s *Storage) Rename(oldName, newName string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if len(newName) > MaxPathLen {
		return fmt.Errorf("%w: %s", ErrPathTooLong, newName)
	}
	if err := s.fs.Rename(oldName, newName); err != nil {
		return fmt.Errorf("rename %s: %w", oldName, s.classify(err))
	}
	return nil
}

// Exists reports whether name exists
func (s *Storage) Exists(name string) bool {
	if !s.Available() {
		return false
	}
	ok, err := afero.Exists(s.fs, name)
	return err == nil && ok
}

// MkdirAll creates a directory and its parents
func (s *Storage) MkdirAll(dir string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, s.classify(err))
	}
	return nil
}

// Stat returns file info
func (s *Storage) Stat(name string) (os.FileInfo, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, s.classify(err))
	}
	return info, nil
}

// List returns the sorted names of regular files in dir. A missing
// directory yields an empty list.
func (s *Storage) List(dir string) ([]string, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, s.classify(err))
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// HighestSequence returns the largest message sequence found in dir
func (s *Storage) HighestSequence(dir string) (uint32, error) {
	names, err := s.List(dir)
	if err != nil {
		return 0, err
	}

	var highest uint32
	for _, name := range names {
		if seq, ok := ParseSequence(name); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

// Join builds a card path from a directory and a file name
func Join(dir, name string) string {
	return path.Join(dir, name)
}

// classify maps low-level failures onto the storage sentinels
func (s *Storage) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFull), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %w", ErrFull, err)
	case !s.present:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

// IsFull reports whether err means the card is out of space
func IsFull(err error) bool {
	return errors.Is(err, ErrFull) || errors.Is(err, syscall.ENOSPC)
}
