package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/taskchat"
)

// Interface compliance check.
var _ taskchat.Provider = (*Client)(nil)

// Client implements [taskchat.Provider] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming request to the Messages API.
func (c *Client) Stream(ctx context.Context, req taskchat.Request) (taskchat.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return newStream(ctx, resp.Body), nil
}

func (c *Client) buildRequest(req taskchat.Request) messagesRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	body := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Stream:      true,
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		body.System = []wireBlock{{Type: "text", Text: req.SystemPrompt}}
	}
	markCacheBreakpoints(&body)
	return body
}

// markCacheBreakpoints caches the stable prefix of every request: the system
// prompt and the tool catalog, plus the rolling message window.
func markCacheBreakpoints(req *messagesRequest) {
	req.Cache = ephemeral
	if n := len(req.System); n > 0 {
		req.System[n-1].Cache = ephemeral
	}
	if n := len(req.Tools); n > 0 {
		req.Tools[n-1].Cache = ephemeral
	}
}

// convertMessages maps the transcript to API messages. Consecutive tool
// results share one user message, and messages left without content (such
// as an empty persisted reply) are dropped.
func convertMessages(msgs []taskchat.Message) []wireMessage {
	var out []wireMessage
	for _, msg := range msgs {
		switch m := msg.(type) {
		case taskchat.UserMessage:
			if blocks := convertBlocks(m.Content); len(blocks) > 0 {
				out = append(out, wireMessage{Role: "user", Content: blocks})
			}
		case taskchat.AssistantMessage:
			if blocks := convertBlocks(m.Content); len(blocks) > 0 {
				out = append(out, wireMessage{Role: "assistant", Content: blocks})
			}
		case taskchat.ToolResultMessage:
			block := wireBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   convertBlocks(m.Content),
				IsError:   m.IsError,
			}
			if n := len(out); n > 0 && out[n-1].Role == "user" && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, wireMessage{Role: "user", Content: []wireBlock{block}})
		}
	}
	return out
}

func convertBlocks(blocks []taskchat.ContentBlock) []wireBlock {
	out := make([]wireBlock, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case taskchat.TextBlock:
			if bl.Text != "" {
				out = append(out, wireBlock{Type: "text", Text: bl.Text})
			}
		case taskchat.ThinkingBlock:
			out = append(out, wireBlock{Type: "thinking", Thinking: bl.Thinking, Signature: string(bl.Signature)})
		case taskchat.ToolCallBlock:
			input := bl.Arguments
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			out = append(out, wireBlock{Type: "tool_use", ID: bl.ID, Name: bl.Name, Input: input})
		}
	}
	return out
}

func convertTools(tools []taskchat.Tool) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		out[i] = wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
	}
	return out
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("anthropic: HTTP %d: %s: %s", resp.StatusCode, envelope.Error.Type, envelope.Error.Message)
}
