package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/taskchat"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ taskchat.Provider = (*Client)(nil)

// Client implements [taskchat.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*config)

type config struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the default model ID used when a request names none.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	cfg := config{model: defaultModel}
	for _, o := range opts {
		o(&cfg)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{client: gc, model: cfg.model}, nil
}

// Stream sends a streaming request to the Gemini API and returns a
// [taskchat.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req taskchat.Request) (taskchat.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	contents, err := ConvertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	tools, err := ConvertTools(req.Tools)
	if err != nil {
		return nil, err
	}
	seq := c.client.Models.GenerateContentStream(ctx, model, contents, buildConfig(req, tools))
	return newStream(ctx, seq), nil
}

func buildConfig(req taskchat.Request, tools []*genai.Tool) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           tools,
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		cfg.Temperature = &temp
	}
	return cfg
}

// ConvertMessages converts transcript messages to genai contents. Consecutive
// tool results are merged into one user content, and messages without parts
// are dropped.
func ConvertMessages(msgs []taskchat.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case taskchat.UserMessage:
			if parts := convertParts(m.Content); len(parts) > 0 {
				out = append(out, &genai.Content{Role: "user", Parts: parts})
			}
		case taskchat.AssistantMessage:
			parts, err := convertAssistantParts(m.Content)
			if err != nil {
				return nil, err
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: "model", Parts: parts})
			}
		case taskchat.ToolResultMessage:
			key := "output"
			if m.IsError {
				key = "error"
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.ToolName,
				Response: map[string]any{key: joinText(m.Content)},
			}}
			if n := len(out); n > 0 && out[n-1].Role == "user" && out[n-1].Parts[0].FunctionResponse != nil {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}
	return out, nil
}

func convertParts(blocks []taskchat.ContentBlock) []*genai.Part {
	var parts []*genai.Part
	for _, b := range blocks {
		if tb, ok := b.(taskchat.TextBlock); ok && tb.Text != "" {
			parts = append(parts, &genai.Part{Text: tb.Text})
		}
	}
	return parts
}

func convertAssistantParts(blocks []taskchat.ContentBlock) ([]*genai.Part, error) {
	var parts []*genai.Part
	for _, b := range blocks {
		switch bl := b.(type) {
		case taskchat.TextBlock:
			if bl.Text != "" {
				parts = append(parts, &genai.Part{Text: bl.Text})
			}
		case taskchat.ThinkingBlock:
			parts = append(parts, &genai.Part{Text: bl.Thinking, Thought: true, ThoughtSignature: bl.Signature})
		case taskchat.ToolCallBlock:
			var args map[string]any
			if len(bl.Arguments) > 0 {
				if err := json.Unmarshal(bl.Arguments, &args); err != nil {
					return nil, fmt.Errorf("gemini: tool call %s arguments: %w", bl.ID, err)
				}
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: bl.ID, Name: bl.Name, Args: args}})
		}
	}
	return parts, nil
}

func joinText(blocks []taskchat.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if tb, ok := b.(taskchat.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ConvertTools converts tool definitions to a single genai tool carrying
// one function declaration per definition.
func ConvertTools(tools []taskchat.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("gemini: tool %s schema: %w", t.Name, err)
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}
