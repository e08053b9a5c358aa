package taskchat

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is the schema sent to the reasoning capability describing a tool.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolExecutor runs tools. Execute returns error for infrastructure failures.
// ToolResult.IsError indicates tool-reported domain failures sent back to the
// capability as text.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
}

// Operation is a named, schema-typed action invoked on behalf of the user
// identified by id. Implementations never return Go errors for backend or
// usage failures; those are reported as IsError text.
type Operation interface {
	Definition() Tool
	Invoke(ctx context.Context, id Identity, args json.RawMessage) *ToolResult
}

// ToolResult represents the outcome of a tool execution.
type ToolResult struct {
	Content []ContentBlock
	IsError bool
}

// Text joins the text blocks of the result with newlines.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range r.Content {
		if tb, ok := b.(TextBlock); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// TextResult returns a successful result carrying text.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock{Text: text}}}
}

// ErrorResult returns a failed result carrying text.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock{Text: text}}, IsError: true}
}

// ToolInvocationRecord is the audit entry for one tool call made during a
// run. Records are returned to the caller in invocation order.
type ToolInvocationRecord struct {
	ToolName   string
	Parameters map[string]any
	Result     string
}

// ChatReply is the outcome of one conversational run.
type ChatReply struct {
	Response  string
	ToolCalls []ToolInvocationRecord
}

// Assistant answers a conversation on behalf of a user. Run fails only for
// reasoning-capability infrastructure errors or when the turn times out;
// task and tool failures are reported inside the reply text.
type Assistant interface {
	Run(ctx context.Context, history []ChatMessage, userID, credential string) (ChatReply, error)
}

// StreamingAssistant is an Assistant that also reports the events of a run
// as they happen. onEvent is called from the goroutine running the turn.
type StreamingAssistant interface {
	Assistant
	RunStream(ctx context.Context, history []ChatMessage, userID, credential string, onEvent func(Event)) (ChatReply, error)
}
