package video

import (
	"errors"
	"fmt"
	"sync"
)

// Sink consumes raw RGB8 frames in order. Write blocks until the consumer
// has accepted the frame; Close finishes the stream and returns its output
// identifier (a file path for encoders).
type Sink interface {
	Write(frame []byte) error
	Close() (string, error)
}

// TopDown is implemented by sinks that expect the first row of a frame to be
// the top of the picture. Sinks without it receive bottom-up rows.
type TopDown interface {
	TopDown() bool
}

// Aborter is implemented by sinks that can discard a partial stream.
type Aborter interface {
	Abort() error
}

// ErrClosed is returned by writes after Close or Abort.
var ErrClosed = errors.New("sink closed")

// MemorySink keeps every frame in memory.
type MemorySink struct {
	Name string
	// Top selects the row order reported through TopDown.
	Top bool
	// FailAfter makes the write after that many frames fail; zero disables it.
	FailAfter int
	Err       error

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	aborted bool
}

func NewMemorySink(topDown bool) *MemorySink {
	return &MemorySink{Name: "memory", Top: topDown}
}

func (m *MemorySink) TopDown() bool { return m.Top }

func (m *MemorySink) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailAfter > 0 && len(m.frames) >= m.FailAfter {
		if m.Err != nil {
			return m.Err
		}
		return fmt.Errorf("memory sink full after %d frames", m.FailAfter)
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

func (m *MemorySink) Close() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.Name, nil
}

func (m *MemorySink) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.aborted = true
	return nil
}

// Frames returns the recorded frames.
func (m *MemorySink) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MemorySink) Aborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}
