package events

import "sync"

// Stream carries events from the engine to one consumer. The engine side
// uses the emit helpers; the consumer ranges over Events until it is
// closed by the single terminal event. Emissions after the terminal are
// silently dropped so late goroutines cannot panic a closed channel.
type Stream struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewStream creates a stream with a small buffer so the engine never
// blocks on a momentarily slow consumer.
func NewStream() *Stream {
	return &Stream{ch: make(chan Event, 32)}
}

// Events is the consumer side.
func (s *Stream) Events() <-chan Event { return s.ch }

// Emit sends one event. Terminal events close the stream; everything
// after the first terminal is dropped. Emit never blocks: when a stalled
// consumer fills the buffer, the oldest pending frame is discarded to
// make room, so the engine cannot wedge behind a dead connection.
func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- e
	}
	if e.Terminal() {
		s.closed = true
		close(s.ch)
	}
}

// Closed reports whether a terminal event has been emitted.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Active announces a reasoning step as running.
func (s *Stream) Active(id, label string) {
	s.Emit(Event{Type: TypeReasoning, Step: &Step{ID: id, Label: label, Status: StepActive}})
}

// Completed marks a reasoning step as finished.
func (s *Stream) Completed(id, label string) {
	s.Emit(Event{Type: TypeReasoning, Step: &Step{ID: id, Label: label, Status: StepCompleted}})
}

// Complete ends the stream with a final answer.
func (s *Stream) Complete(c Completion) {
	s.Emit(Event{Type: TypeComplete, Completion: &c})
}

// Error ends the stream with a failure message.
func (s *Stream) Error(msg string) {
	s.Emit(Event{Type: TypeError, Message: msg})
}

// Collect drains a stream into a slice. Intended for the non-streaming
// API path and tests.
func Collect(s *Stream) []Event {
	var out []Event
	for e := range s.Events() {
		out = append(out, e)
	}
	return out
}
