package viewmodel

import "sync"

// Emitter receives a snapshot after every state change.
type Emitter func(ViewModel)

// Discard ignores every snapshot.
func Discard(ViewModel) {}

// Stream adapts an Emitter to a channel. The channel holds at most buf
// snapshots; when the reader falls behind the oldest snapshot is dropped
// so the newest is always delivered. Close stops delivery.
type Stream struct {
	mu     sync.Mutex
	ch     chan ViewModel
	closed bool
}

// NewStream creates a stream with the given buffer (at least 1).
func NewStream(buf int) *Stream {
	if buf < 1 {
		buf = 1
	}
	return &Stream{ch: make(chan ViewModel, buf)}
}

// C returns the receive side.
func (s *Stream) C() <-chan ViewModel { return s.ch }

// Emit is an Emitter.
func (s *Stream) Emit(vm ViewModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- vm:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Close closes the channel. Further emits are dropped.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Tee fans one snapshot out to several emitters in order.
func Tee(emitters ...Emitter) Emitter {
	return func(vm ViewModel) {
		for _, e := range emitters {
			if e != nil {
				e(vm)
			}
		}
	}
}
