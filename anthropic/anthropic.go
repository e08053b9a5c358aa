// Package anthropic is the Claude backend for the chat assistant. A turn is
// one POST to the Messages endpoint with stream enabled; the reply is read as
// server-sent events and handed to the agent loop as [taskchat.Event] values.
package anthropic

import "encoding/json"

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// Outgoing request.

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
	System      []wireBlock   `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Cache       *cacheMarker  `json:"cache_control,omitempty"`
}

// cacheMarker flags the end of a prefix the API may reuse across turns.
type cacheMarker struct {
	Type string `json:"type"`
}

var ephemeral = &cacheMarker{Type: "ephemeral"}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

// wireBlock is a tagged union keyed by Type: text, thinking, tool_use and
// tool_result each fill their own subset.
type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   []wireBlock     `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Cache     *cacheMarker    `json:"cache_control,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Cache       *cacheMarker    `json:"cache_control,omitempty"`
}

// Incoming events. The SSE event name selects the decoder, so the "type"
// member repeated inside each payload is not read.

type messageStart struct {
	Message struct {
		Usage struct {
			InputTokens  int  `json:"input_tokens"`
			OutputTokens int  `json:"output_tokens"`
			CacheRead    *int `json:"cache_read_input_tokens"`
			CacheWrite   *int `json:"cache_creation_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// blockEvent decodes content_block_start, content_block_delta and
// content_block_stop. Start fills Block, delta fills Delta, stop only Index.
type blockEvent struct {
	Index int `json:"index"`
	Block struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
		ID       string `json:"id"`
		Name     string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		Thinking    string `json:"thinking"`
		Signature   string `json:"signature"`
	} `json:"delta"`
}

type messageDelta struct {
	Delta struct {
		StopReason *string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int  `json:"output_tokens"`
		InputTokens  *int `json:"input_tokens"`
	} `json:"usage"`
}

// errorEnvelope is both the mid-stream error event and the body of a non-200
// response.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
