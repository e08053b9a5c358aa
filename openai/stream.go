package openai

import (
	"fmt"
	"io"

	"github.com/fwojciec/taskchat"
)

// stream replays a finished completion as semantic events.
type stream struct {
	msg    taskchat.AssistantMessage
	events []taskchat.Event
	state  taskchat.StreamState
}

// Interface compliance check.
var _ taskchat.Stream = (*stream)(nil)

func newStream(msg taskchat.AssistantMessage) *stream {
	var events []taskchat.Event
	for i, b := range msg.Content {
		switch bl := b.(type) {
		case taskchat.TextBlock:
			events = append(events, taskchat.EventTextDelta{Index: i, Delta: bl.Text})
		case taskchat.ToolCallBlock:
			events = append(events,
				taskchat.EventToolCallBegin{ID: bl.ID, Name: bl.Name},
				taskchat.EventToolCallDelta{ID: bl.ID, Delta: string(bl.Arguments)},
				taskchat.EventToolCallEnd{Call: bl},
			)
		}
	}
	return &stream{msg: msg, events: events, state: taskchat.StreamStateNew}
}

func (s *stream) Next() (taskchat.Event, error) {
	switch s.state {
	case taskchat.StreamStateComplete:
		return nil, io.EOF
	case taskchat.StreamStateClosed:
		return nil, fmt.Errorf("openai: %w", taskchat.ErrStreamClosed)
	}
	if len(s.events) == 0 {
		s.state = taskchat.StreamStateComplete
		return nil, io.EOF
	}
	s.state = taskchat.StreamStateStreaming
	evt := s.events[0]
	s.events = s.events[1:]
	return evt, nil
}

func (s *stream) State() taskchat.StreamState {
	return s.state
}

func (s *stream) Message() (taskchat.AssistantMessage, error) {
	if s.state == taskchat.StreamStateNew {
		return taskchat.AssistantMessage{}, fmt.Errorf("openai: %w", taskchat.ErrStreamNotReady)
	}
	return s.msg, nil
}

func (s *stream) Close() error {
	if s.state != taskchat.StreamStateComplete {
		s.state = taskchat.StreamStateClosed
		s.msg.StopReason = taskchat.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return nil
}
