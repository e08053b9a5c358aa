package mock

import (
	"io"

	"github.com/fwojciec/taskchat"
)

// Stream is a test double for taskchat.Stream.
// Set the function fields for the methods you need. NextFn and MessageFn
// panic when nil to catch missing setup. CloseFn and StateFn are nil-safe.
type Stream struct {
	NextFn    func() (taskchat.Event, error)
	StateFn   func() taskchat.StreamState
	MessageFn func() (taskchat.AssistantMessage, error)
	CloseFn   func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (taskchat.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() taskchat.StreamState {
	if s.StateFn == nil {
		return taskchat.StreamStateNew
	}
	return s.StateFn()
}

// Message delegates to MessageFn.
func (s *Stream) Message() (taskchat.AssistantMessage, error) {
	return s.MessageFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Completed returns a stream that yields events in order, then io.EOF, and
// assembles to msg.
func Completed(msg taskchat.AssistantMessage, events ...taskchat.Event) *Stream {
	i := 0
	return &Stream{
		NextFn: func() (taskchat.Event, error) {
			if i >= len(events) {
				return nil, io.EOF
			}
			e := events[i]
			i++
			return e, nil
		},
		MessageFn: func() (taskchat.AssistantMessage, error) {
			return msg, nil
		},
	}
}
