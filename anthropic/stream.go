package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fwojciec/taskchat"
)

// stream implements [taskchat.Stream] by parsing SSE events from an HTTP
// response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	state   taskchat.StreamState
	msg     taskchat.AssistantMessage
	blocks  map[int]*blockState
	err     error
}

// blockState accumulates one content block by its API index.
type blockState struct {
	kind      string
	toolID    string
	toolName  string
	buf       strings.Builder
	signature strings.Builder
}

// Interface compliance check.
var _ taskchat.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &stream{
		body:    body,
		scanner: sc,
		ctx:     ctx,
		state:   taskchat.StreamStateNew,
		blocks:  make(map[int]*blockState),
	}
}

// Next reads the next semantic event from the SSE stream.
// Returns io.EOF when the stream completes normally.
func (s *stream) Next() (taskchat.Event, error) {
	switch s.state {
	case taskchat.StreamStateComplete:
		return nil, io.EOF
	case taskchat.StreamStateError:
		return nil, s.err
	case taskchat.StreamStateClosed:
		return nil, fmt.Errorf("anthropic: %w", taskchat.ErrStreamClosed)
	}

	for {
		name, data, err := s.readEvent()
		if err != nil {
			s.fail(err)
			return nil, s.err
		}
		s.state = taskchat.StreamStateStreaming

		evt, err := s.dispatch(name, data)
		if err != nil {
			s.fail(err)
			return nil, s.err
		}
		if s.state == taskchat.StreamStateComplete {
			return nil, io.EOF
		}
		if evt != nil {
			return evt, nil
		}
	}
}

// State returns the current stream state.
func (s *stream) State() taskchat.StreamState {
	return s.state
}

// Message returns the message assembled so far, with blocks in API index
// order.
func (s *stream) Message() (taskchat.AssistantMessage, error) {
	if s.state == taskchat.StreamStateNew {
		return taskchat.AssistantMessage{}, fmt.Errorf("anthropic: %w", taskchat.ErrStreamNotReady)
	}
	msg := s.msg
	msg.Content = s.assemble()
	return msg, nil
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != taskchat.StreamStateComplete && s.state != taskchat.StreamStateError {
		s.state = taskchat.StreamStateClosed
		s.msg.StopReason = taskchat.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return s.body.Close()
}

func (s *stream) assemble() []taskchat.ContentBlock {
	indexes := make([]int, 0, len(s.blocks))
	for i := range s.blocks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	content := make([]taskchat.ContentBlock, 0, len(indexes))
	for _, i := range indexes {
		bs := s.blocks[i]
		switch bs.kind {
		case "text":
			content = append(content, taskchat.TextBlock{Text: bs.buf.String()})
		case "thinking":
			var sig []byte
			if bs.signature.Len() > 0 {
				sig = []byte(bs.signature.String())
			}
			content = append(content, taskchat.ThinkingBlock{Thinking: bs.buf.String(), Signature: sig})
		case "tool_use":
			content = append(content, bs.toolCall())
		}
	}
	return content
}

func (bs *blockState) toolCall() taskchat.ToolCallBlock {
	raw := bs.buf.String()
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	return taskchat.ToolCallBlock{ID: bs.toolID, Name: bs.toolName, Arguments: json.RawMessage(raw)}
}

// fail records a terminal error and the matching stop reason.
func (s *stream) fail(err error) {
	s.state = taskchat.StreamStateError
	switch {
	case err == io.EOF:
		// message_stop completes the stream; a bare EOF means it was cut short.
		s.err = fmt.Errorf("anthropic: unexpected end of stream")
		s.msg.StopReason = taskchat.StopError
		s.msg.RawStopReason = "error"
	case s.ctx.Err() != nil:
		s.err = err
		s.msg.StopReason = taskchat.StopAborted
		s.msg.RawStopReason = "aborted"
	default:
		s.err = err
		s.msg.StopReason = taskchat.StopError
		s.msg.RawStopReason = "error"
	}
}

// readEvent reads lines until a complete SSE event is assembled and returns
// its name and data payload.
func (s *stream) readEvent() (string, string, error) {
	var name string
	var data strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				return name, data.String(), nil
			}
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
		// Comments (empty field) and unknown fields are ignored.
	}
	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w", err)
	}
	if data.Len() > 0 {
		return name, data.String(), nil
	}
	return "", "", io.EOF
}

// dispatch maps an SSE event to a semantic event. Non-semantic events return
// a nil event.
func (s *stream) dispatch(name, data string) (taskchat.Event, error) {
	switch name {
	case "message_start":
		return nil, s.onMessageStart(data)
	case "content_block_start":
		return s.onBlockStart(data)
	case "content_block_delta":
		return s.onBlockDelta(data)
	case "content_block_stop":
		return s.onBlockStop(data)
	case "message_delta":
		return nil, s.onMessageDelta(data)
	case "message_stop":
		s.state = taskchat.StreamStateComplete
		return nil, nil
	case "error":
		return nil, parseErrorEvent(data)
	}
	// ping and unknown event types.
	return nil, nil
}

func decode(kind, data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("anthropic: parse %s: %w", kind, err)
	}
	return nil
}

func (s *stream) onMessageStart(data string) error {
	var evt messageStart
	if err := decode("message_start", data, &evt); err != nil {
		return err
	}
	u := evt.Message.Usage
	s.msg.Usage.InputTokens = u.InputTokens
	s.msg.Usage.OutputTokens = u.OutputTokens
	if u.CacheRead != nil {
		s.msg.Usage.CacheReadTokens = *u.CacheRead
	}
	if u.CacheWrite != nil {
		s.msg.Usage.CacheWriteTokens = *u.CacheWrite
	}
	return nil
}

func (s *stream) onBlockStart(data string) (taskchat.Event, error) {
	var evt blockEvent
	if err := decode("content_block_start", data, &evt); err != nil {
		return nil, err
	}
	cb := evt.Block
	bs := &blockState{kind: cb.Type, toolID: cb.ID, toolName: cb.Name}
	s.blocks[evt.Index] = bs

	switch cb.Type {
	case "tool_use":
		return taskchat.EventToolCallBegin{ID: cb.ID, Name: cb.Name}, nil
	case "text":
		if cb.Text != "" {
			bs.buf.WriteString(cb.Text)
			return taskchat.EventTextDelta{Index: evt.Index, Delta: cb.Text}, nil
		}
	case "thinking":
		bs.buf.WriteString(cb.Thinking)
	}
	return nil, nil
}

func (s *stream) onBlockDelta(data string) (taskchat.Event, error) {
	var evt blockEvent
	if err := decode("content_block_delta", data, &evt); err != nil {
		return nil, err
	}
	bs := s.blocks[evt.Index]
	if bs == nil {
		return nil, fmt.Errorf("anthropic: delta for unknown block index %d", evt.Index)
	}

	d := evt.Delta
	switch d.Type {
	case "text_delta":
		bs.buf.WriteString(d.Text)
		return taskchat.EventTextDelta{Index: evt.Index, Delta: d.Text}, nil
	case "input_json_delta":
		bs.buf.WriteString(d.PartialJSON)
		return taskchat.EventToolCallDelta{ID: bs.toolID, Delta: d.PartialJSON}, nil
	case "thinking_delta":
		bs.buf.WriteString(d.Thinking)
		return taskchat.EventThinkingDelta{Index: evt.Index, Delta: d.Thinking}, nil
	case "signature_delta":
		bs.signature.WriteString(d.Signature)
	}
	return nil, nil
}

func (s *stream) onBlockStop(data string) (taskchat.Event, error) {
	var evt blockEvent
	if err := decode("content_block_stop", data, &evt); err != nil {
		return nil, err
	}
	bs := s.blocks[evt.Index]
	if bs == nil {
		return nil, fmt.Errorf("anthropic: stop for unknown block index %d", evt.Index)
	}
	if bs.kind == "tool_use" {
		return taskchat.EventToolCallEnd{Call: bs.toolCall()}, nil
	}
	return nil, nil
}

func (s *stream) onMessageDelta(data string) error {
	var evt messageDelta
	if err := decode("message_delta", data, &evt); err != nil {
		return err
	}
	s.msg.Usage.OutputTokens = evt.Usage.OutputTokens
	if evt.Usage.InputTokens != nil {
		s.msg.Usage.InputTokens = *evt.Usage.InputTokens
	}
	if evt.Delta.StopReason != nil {
		s.msg.RawStopReason = *evt.Delta.StopReason
		s.msg.StopReason = mapStopReason(*evt.Delta.StopReason)
	}
	return nil
}

func parseErrorEvent(data string) error {
	var evt errorEnvelope
	if err := decode("error", data, &evt); err != nil {
		return err
	}
	return fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
}

func mapStopReason(raw string) taskchat.StopReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return taskchat.StopEndTurn
	case "max_tokens":
		return taskchat.StopLength
	case "tool_use":
		return taskchat.StopToolUse
	}
	return taskchat.StopUnknown
}
