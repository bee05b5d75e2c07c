// ABOUTME: Medium over any byte stream such as a serial port or TCP socket
// ABOUTME: A reader goroutine fills the ring; writes go straight to the stream
package link

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("link: closed")

// Stream adapts an io.ReadWriteCloser into a transport medium
type Stream struct {
	*Ring

	rw     io.ReadWriteCloser
	wmu    sync.Mutex
	closed bool
	done   chan struct{}
}

// NewStream starts reading rw into a ring of ringSize bytes
func NewStream(rw io.ReadWriteCloser, ringSize int) *Stream {
	s := &Stream{
		Ring: NewRing(ringSize),
		rw:   rw,
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)
	buf := make([]byte, 4096)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			s.Ring.Write(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("Link read error: %v", err)
			}
			return
		}
	}
}

// Write sends p on the stream
func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.rw.Write(p)
	if err != nil {
		return n, fmt.Errorf("link write: %w", err)
	}
	return n, nil
}

// Done is closed when the stream reaches EOF or fails
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close closes the stream and waits for the reader to stop
func (s *Stream) Close() error {
	s.wmu.Lock()
	if s.closed {
		s.wmu.Unlock()
		return nil
	}
	s.closed = true
	s.wmu.Unlock()

	err := s.rw.Close()
	<-s.done
	return err
}
