package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/taskchat"
	"github.com/google/uuid"
)

// Interface compliance check.
var _ taskchat.Provider = (*Client)(nil)

// Client implements [taskchat.Provider] for an OpenAI-compatible chat
// completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL, including any version prefix.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream requests a completion and returns a stream replaying it.
func (c *Client) Stream(ctx context.Context, req taskchat.Request) (taskchat.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	msg, err := toMessage(out.Choices[0], out.Usage)
	if err != nil {
		return nil, err
	}
	return newStream(msg), nil
}

func (c *Client) buildRequest(req taskchat.Request) apiRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	var msgs []apiMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, apiMessage{Role: "system", Content: &req.SystemPrompt})
	}
	msgs = append(msgs, convertMessages(req.Messages)...)
	return apiRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Tools:       convertTools(req.Tools),
	}
}

func convertMessages(msgs []taskchat.Message) []apiMessage {
	var out []apiMessage
	for _, msg := range msgs {
		switch m := msg.(type) {
		case taskchat.UserMessage:
			if text := joinText(m.Content); text != "" {
				out = append(out, apiMessage{Role: "user", Content: &text})
			}
		case taskchat.AssistantMessage:
			am := apiMessage{Role: "assistant"}
			if text := m.Text(); text != "" {
				am.Content = &text
			}
			for _, tc := range m.ToolCalls() {
				args := string(tc.Arguments)
				if args == "" {
					args = "{}"
				}
				am.ToolCalls = append(am.ToolCalls, apiToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: apiFunction{Name: tc.Name, Arguments: args},
				})
			}
			if am.Content != nil || len(am.ToolCalls) > 0 {
				out = append(out, am)
			}
		case taskchat.ToolResultMessage:
			text := joinText(m.Content)
			out = append(out, apiMessage{Role: "tool", Content: &text, ToolCallID: m.ToolCallID})
		}
	}
	return out
}

func joinText(blocks []taskchat.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if tb, ok := b.(taskchat.TextBlock); ok && tb.Text != "" {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func convertTools(tools []taskchat.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]apiTool, len(tools))
	for i, t := range tools {
		out[i] = apiTool{
			Type:     "function",
			Function: apiFunctionDef{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		}
	}
	return out
}

func toMessage(choice apiChoice, usage apiUsage) (taskchat.AssistantMessage, error) {
	var content []taskchat.ContentBlock
	if c := choice.Message.Content; c != nil && *c != "" {
		content = append(content, taskchat.TextBlock{Text: *c})
	}
	for _, tc := range choice.Message.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return taskchat.AssistantMessage{}, fmt.Errorf("openai: invalid tool call arguments for %s", tc.Function.Name)
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		content = append(content, taskchat.ToolCallBlock{ID: id, Name: tc.Function.Name, Arguments: json.RawMessage(args)})
	}

	cached := 0
	if usage.PromptTokensDetails != nil {
		cached = usage.PromptTokensDetails.CachedTokens
	}
	msg := taskchat.AssistantMessage{
		Content:       content,
		RawStopReason: choice.FinishReason,
		StopReason:    mapFinishReason(choice.FinishReason),
		Usage: taskchat.Usage{
			InputTokens:     max(usage.PromptTokens-cached, 0),
			OutputTokens:    usage.CompletionTokens,
			CacheReadTokens: cached,
		},
	}
	if msg.StopReason == taskchat.StopEndTurn && len(choice.Message.ToolCalls) > 0 {
		msg.StopReason = taskchat.StopToolUse
	}
	return msg, nil
}

func mapFinishReason(raw string) taskchat.StopReason {
	switch raw {
	case "stop", "":
		return taskchat.StopEndTurn
	case "length":
		return taskchat.StopLength
	case "tool_calls", "function_call":
		return taskchat.StopToolUse
	case "content_filter", "error":
		return taskchat.StopError
	}
	return taskchat.StopUnknown
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("openai: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("openai: HTTP %d: %s", resp.StatusCode, apiErr.Error.Message)
}
