// Package mock provides test doubles for taskchat interfaces using function fields.
package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/taskchat"
)

// Interface compliance checks.
var (
	_ taskchat.Provider           = (*Provider)(nil)
	_ taskchat.Stream             = (*Stream)(nil)
	_ taskchat.ToolExecutor       = (*ToolExecutor)(nil)
	_ taskchat.OperationClient    = (*OperationClient)(nil)
	_ taskchat.Operation          = (*Operation)(nil)
	_ taskchat.StreamingAssistant = (*Assistant)(nil)
	_ taskchat.ConversationStore  = (*ConversationStore)(nil)
)

// Provider is a test double for taskchat.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req taskchat.Request) (taskchat.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req taskchat.Request) (taskchat.Stream, error) {
	return p.StreamFn(ctx, req)
}

// ToolExecutor is a test double for taskchat.ToolExecutor.
// Set ExecuteFn before calling Execute.
type ToolExecutor struct {
	ExecuteFn func(ctx context.Context, name string, args json.RawMessage) (*taskchat.ToolResult, error)
}

// Execute delegates to ExecuteFn.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (*taskchat.ToolResult, error) {
	return e.ExecuteFn(ctx, name, args)
}

// OperationClient is a test double for taskchat.OperationClient.
type OperationClient struct {
	CallFn func(ctx context.Context, method, path, credential string, body any) taskchat.OperationResult
}

// Call delegates to CallFn.
func (c *OperationClient) Call(ctx context.Context, method, path, credential string, body any) taskchat.OperationResult {
	return c.CallFn(ctx, method, path, credential, body)
}

// Operation is a test double for taskchat.Operation.
type Operation struct {
	DefinitionFn func() taskchat.Tool
	InvokeFn     func(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult
}

// Definition delegates to DefinitionFn.
func (o *Operation) Definition() taskchat.Tool {
	return o.DefinitionFn()
}

// Invoke delegates to InvokeFn.
func (o *Operation) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	return o.InvokeFn(ctx, id, args)
}

// Assistant is a test double for taskchat.StreamingAssistant.
// RunStream falls back to RunFn when RunStreamFn is nil.
type Assistant struct {
	RunFn       func(ctx context.Context, history []taskchat.ChatMessage, userID, credential string) (taskchat.ChatReply, error)
	RunStreamFn func(ctx context.Context, history []taskchat.ChatMessage, userID, credential string, onEvent func(taskchat.Event)) (taskchat.ChatReply, error)
}

// Run delegates to RunFn.
func (a *Assistant) Run(ctx context.Context, history []taskchat.ChatMessage, userID, credential string) (taskchat.ChatReply, error) {
	return a.RunFn(ctx, history, userID, credential)
}

// RunStream delegates to RunStreamFn, or to RunFn when it is unset.
func (a *Assistant) RunStream(ctx context.Context, history []taskchat.ChatMessage, userID, credential string, onEvent func(taskchat.Event)) (taskchat.ChatReply, error) {
	if a.RunStreamFn == nil {
		return a.RunFn(ctx, history, userID, credential)
	}
	return a.RunStreamFn(ctx, history, userID, credential, onEvent)
}
