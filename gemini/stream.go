package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/fwojciec/taskchat"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// stream implements [taskchat.Stream] over the genai streaming iterator.
// One chunk may carry several parts, so events are queued and handed out
// one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   taskchat.StreamState
	msg     taskchat.AssistantMessage
	blocks  []*block
	pending []taskchat.Event
	finish  genai.FinishReason
	blocked string
	err     error
}

type block struct {
	kind      string // "text", "thinking" or "tool"
	text      []byte
	signature []byte
	call      taskchat.ToolCallBlock
}

// Interface compliance check.
var _ taskchat.Stream = (*stream)(nil)

func newStream(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: taskchat.StreamStateNew,
	}
}

func (s *stream) Next() (taskchat.Event, error) {
	switch s.state {
	case taskchat.StreamStateComplete:
		return nil, io.EOF
	case taskchat.StreamStateError:
		return nil, s.err
	case taskchat.StreamStateClosed:
		return nil, fmt.Errorf("gemini: %w", taskchat.ErrStreamClosed)
	}

	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			s.state = taskchat.StreamStateStreaming
			return evt, nil
		}
		if err := s.ctx.Err(); err != nil {
			s.fail(fmt.Errorf("gemini: %w", err))
			return nil, s.err
		}

		chunk, err, ok := s.pull()
		if !ok {
			s.finalize()
			s.state = taskchat.StreamStateComplete
			return nil, io.EOF
		}
		s.state = taskchat.StreamStateStreaming
		if err != nil {
			s.fail(fmt.Errorf("gemini: %w", err))
			return nil, s.err
		}
		if chunk == nil {
			continue
		}
		if err := s.processChunk(chunk); err != nil {
			s.fail(err)
			return nil, s.err
		}
	}
}

func (s *stream) State() taskchat.StreamState {
	return s.state
}

func (s *stream) Message() (taskchat.AssistantMessage, error) {
	if s.state == taskchat.StreamStateNew {
		return taskchat.AssistantMessage{}, fmt.Errorf("gemini: %w", taskchat.ErrStreamNotReady)
	}
	msg := s.msg
	msg.Content = make([]taskchat.ContentBlock, 0, len(s.blocks))
	for _, b := range s.blocks {
		switch b.kind {
		case "text":
			msg.Content = append(msg.Content, taskchat.TextBlock{Text: string(b.text)})
		case "thinking":
			msg.Content = append(msg.Content, taskchat.ThinkingBlock{Thinking: string(b.text), Signature: b.signature})
		case "tool":
			msg.Content = append(msg.Content, b.call)
		}
	}
	return msg, nil
}

func (s *stream) Close() error {
	if s.state != taskchat.StreamStateComplete && s.state != taskchat.StreamStateError {
		s.state = taskchat.StreamStateClosed
		s.msg.StopReason = taskchat.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	s.stop()
	return nil
}

func (s *stream) fail(err error) {
	s.state = taskchat.StreamStateError
	s.err = err
	switch {
	case s.blocked != "":
		s.msg.StopReason = taskchat.StopError
		s.msg.RawStopReason = s.blocked
	case s.ctx.Err() != nil:
		s.msg.StopReason = taskchat.StopAborted
		s.msg.RawStopReason = "aborted"
	default:
		s.msg.StopReason = taskchat.StopError
		s.msg.RawStopReason = "error"
	}
}

func (s *stream) processChunk(chunk *genai.GenerateContentResponse) error {
	if u := chunk.UsageMetadata; u != nil {
		cached := int(u.CachedContentTokenCount)
		s.msg.Usage = taskchat.Usage{
			InputTokens:     max(int(u.PromptTokenCount)-cached, 0),
			OutputTokens:    int(u.CandidatesTokenCount) + int(u.ThoughtsTokenCount),
			CacheReadTokens: cached,
		}
	}
	if len(chunk.Candidates) == 0 {
		if fb := chunk.PromptFeedback; fb != nil && fb.BlockReason != "" {
			s.blocked = string(fb.BlockReason)
			return fmt.Errorf("gemini: prompt blocked: %s", fb.BlockReason)
		}
		return nil
	}
	cand := chunk.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			if err := s.processPart(p); err != nil {
				return err
			}
		}
	}
	if cand.FinishReason != "" {
		s.finish = cand.FinishReason
	}
	return nil
}

func (s *stream) processPart(p *genai.Part) error {
	switch {
	case p.FunctionCall != nil:
		return s.processCall(p)
	case p.Thought:
		b := s.current("thinking")
		if len(p.ThoughtSignature) > 0 {
			b.signature = p.ThoughtSignature
		}
		if p.Text != "" {
			b.text = append(b.text, p.Text...)
			s.pending = append(s.pending, taskchat.EventThinkingDelta{Index: len(s.blocks) - 1, Delta: p.Text})
		}
	case p.Text != "":
		b := s.current("text")
		b.text = append(b.text, p.Text...)
		s.pending = append(s.pending, taskchat.EventTextDelta{Index: len(s.blocks) - 1, Delta: p.Text})
	}
	return nil
}

// processCall records a complete function call. Gemini may attach the
// thought signature to the call instead of the thought part; it is moved to
// the preceding thinking block so it is echoed back next turn.
func (s *stream) processCall(p *genai.Part) error {
	fc := p.FunctionCall
	args := json.RawMessage(`{}`)
	if fc.Args != nil {
		raw, err := json.Marshal(fc.Args)
		if err != nil {
			return fmt.Errorf("gemini: invalid tool call arguments for %s: %w", fc.Name, err)
		}
		args = raw
	}
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	if len(p.ThoughtSignature) > 0 {
		if n := len(s.blocks); n > 0 && s.blocks[n-1].kind == "thinking" && len(s.blocks[n-1].signature) == 0 {
			s.blocks[n-1].signature = p.ThoughtSignature
		}
	}
	call := taskchat.ToolCallBlock{ID: id, Name: fc.Name, Arguments: args}
	s.blocks = append(s.blocks, &block{kind: "tool", call: call})
	s.pending = append(s.pending,
		taskchat.EventToolCallBegin{ID: id, Name: fc.Name},
		taskchat.EventToolCallEnd{Call: call},
	)
	return nil
}

// current returns the trailing block if it has the given kind, or starts a
// new one.
func (s *stream) current(kind string) *block {
	if n := len(s.blocks); n > 0 && s.blocks[n-1].kind == kind {
		return s.blocks[n-1]
	}
	b := &block{kind: kind}
	s.blocks = append(s.blocks, b)
	return b
}

func (s *stream) finalize() {
	s.msg.StopReason, s.msg.RawStopReason = mapFinishReason(s.finish)
	if s.msg.StopReason != taskchat.StopEndTurn {
		return
	}
	for _, b := range s.blocks {
		if b.kind == "tool" {
			s.msg.StopReason = taskchat.StopToolUse
			return
		}
	}
}

func mapFinishReason(r genai.FinishReason) (taskchat.StopReason, string) {
	switch string(r) {
	case "":
		return taskchat.StopEndTurn, "end_turn"
	case "STOP":
		return taskchat.StopEndTurn, string(r)
	case "MAX_TOKENS":
		return taskchat.StopLength, string(r)
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII",
		"MALFORMED_FUNCTION_CALL", "IMAGE_SAFETY", "LANGUAGE":
		return taskchat.StopError, string(r)
	}
	return taskchat.StopUnknown, string(r)
}
