package cytomattest

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Loopback is a transport that reads back every frame written to it.
// The echo carries the command's own name, so the engine accepts it as
// the matching frame and decodes the arguments as response fields.
type Loopback struct {
	mu      sync.Mutex
	queue   [][]byte
	written [][]byte
	closed  bool
}

// NewLoopback returns an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, os.ErrClosed
	}
	frame := append([]byte(nil), p...)
	l.queue = append(l.queue, frame)
	l.written = append(l.written, frame)
	return len(p), nil
}

// ReadUntil returns the oldest unread frame. It never waits: with nothing
// queued it fails immediately with an error matching os.ErrDeadlineExceeded.
func (l *Loopback) ReadUntil(delim byte, timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, os.ErrClosed
	}
	if len(l.queue) == 0 {
		return nil, fmt.Errorf("cytomattest: loopback empty after %s: %w", timeout, os.ErrDeadlineExceeded)
	}
	frame := l.queue[0]
	l.queue = l.queue[1:]
	return frame, nil
}

// Written returns every frame written so far.
func (l *Loopback) Written() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.written...)
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type step struct {
	frame []byte
	err   error
}

// Script is a transport that answers reads from a fixed list of frames and
// errors, in order, regardless of what was written. It does not flush.
type Script struct {
	mu      sync.Mutex
	steps   []step
	written [][]byte
	closed  bool
}

// NewScript returns a script that replies with frames in order.
func NewScript(frames ...string) *Script {
	s := &Script{}
	for _, f := range frames {
		s.Reply(f)
	}
	return s
}

// Reply queues a raw frame.
func (s *Script) Reply(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{frame: []byte(frame)})
}

// Fail queues a read error.
func (s *Script) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{err: err})
}

func (s *Script) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, os.ErrClosed
	}
	s.written = append(s.written, append([]byte(nil), p...))
	return len(p), nil
}

// ReadUntil returns the next scripted step. An exhausted script times out.
func (s *Script) ReadUntil(delim byte, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, os.ErrClosed
	}
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("cytomattest: script exhausted: %w", os.ErrDeadlineExceeded)
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.frame, next.err
}

// Written returns every frame written so far, as strings.
func (s *Script) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.written))
	for i, w := range s.written {
		out[i] = string(w)
	}
	return out
}

// Remaining returns the number of unread steps.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
