package sandbox

import (
	"sync"

	"go.starlark.net/starlark"
)

// Sink is a bounded, append-only byte buffer. Writes past the configured
// capacity are dropped and the truncated flag is set, so a run can never
// grow a sink without bound no matter how verbose it is.
type Sink struct {
	mu        sync.Mutex
	buf       []byte
	capacity  int
	truncated bool
}

// NewSink creates a sink that accepts up to capacity bytes.
func NewSink(capacity int) *Sink {
	return &Sink{capacity: capacity}
}

// Write appends p up to the remaining capacity. It always reports the full
// length as written so callers treating the sink as an io.Writer do not
// error out mid-run; overflow is recorded in the truncated flag instead.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.capacity - len(s.buf)
	if remaining <= 0 {
		if len(p) > 0 {
			s.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		s.buf = append(s.buf, p[:remaining]...)
		s.truncated = true
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// WriteString appends s like Write.
func (s *Sink) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// String returns the captured bytes.
func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// Truncated reports whether any write overflowed the capacity.
func (s *Sink) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

// Capture holds the two bounded sinks substituted for a run's standard
// output and standard error channels. The sinks are wired into the run's
// interpreter thread rather than swapped into process-wide state, so they
// exist only for the run's duration and no restore step can be missed on
// any exit path.
type Capture struct {
	Stdout *Sink
	Stderr *Sink
}

// NewCapture creates a capture with the given per-channel capacity.
func NewCapture(capacity int) *Capture {
	return &Capture{
		Stdout: NewSink(capacity),
		Stderr: NewSink(capacity),
	}
}

// PrintHook returns the function installed as the interpreter thread's
// print handler. Strategy print calls land in the stdout sink with a
// trailing newline, matching the channel semantics strategies expect.
func (c *Capture) PrintHook() func(thread *starlark.Thread, msg string) {
	return func(_ *starlark.Thread, msg string) {
		_, _ = c.Stdout.WriteString(msg)
		_, _ = c.Stdout.WriteString("\n")
	}
}
