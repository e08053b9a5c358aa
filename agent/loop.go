// Package agent runs the reasoning/tool loop between a Provider and the task
// tools, and orchestrates one chat turn on behalf of a user.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fwojciec/taskchat"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

const (
	// DefaultMaxSteps bounds the reasoning steps of one run.
	DefaultMaxSteps = 10
	// DefaultMaxParallel bounds concurrent tool executions within one step.
	DefaultMaxParallel = 5
)

// Loop drives a Provider until it produces a final answer, executing the
// tool calls it requests along the way. A Loop holds no per-run state and
// may be shared by concurrent runs.
type Loop struct {
	provider    taskchat.Provider
	maxSteps    int
	maxParallel int
	log         zerolog.Logger
}

// Option configures a [Loop].
type Option func(*Loop)

// WithMaxSteps sets the maximum number of reasoning steps per run.
func WithMaxSteps(n int) Option {
	return func(l *Loop) { l.maxSteps = n }
}

// WithMaxParallel sets how many tool calls of one step may run at once.
func WithMaxParallel(n int) Option {
	return func(l *Loop) { l.maxParallel = n }
}

// WithLogger sets the loop's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// New creates a new Loop for provider.
func New(provider taskchat.Provider, opts ...Option) *Loop {
	l := &Loop{
		provider:    provider,
		maxSteps:    DefaultMaxSteps,
		maxParallel: DefaultMaxParallel,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent   func(taskchat.Event)
	onPhase   func(Phase)
	model     string
	maxTokens int
}

// WithEventHandler sets a callback that receives each streaming event during
// the run, including tool results. If nil or not set, events are discarded.
func WithEventHandler(h func(taskchat.Event)) RunOption {
	return func(c *runConfig) { c.onEvent = h }
}

// WithPhaseHandler sets a callback invoked on every phase transition.
func WithPhaseHandler(h func(Phase)) RunOption {
	return func(c *runConfig) { c.onPhase = h }
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) { c.model = model }
}

// WithMaxTokens sets the output token limit for provider requests.
func WithMaxTokens(n int) RunOption {
	return func(c *runConfig) { c.maxTokens = n }
}

func (c *runConfig) phase(p Phase) {
	if c.onPhase != nil {
		c.onPhase(p)
	}
}

func (c *runConfig) emit(e taskchat.Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

// Run executes the loop. It sends the session's messages to the provider,
// executes any tool calls through exec, and repeats until the assistant
// answers without requesting tools. Messages and tool invocation records are
// appended to session. Run returns ErrStepLimit when the provider is still
// requesting tools after the step budget is spent.
func (l *Loop) Run(ctx context.Context, session *taskchat.Session, tools []taskchat.Tool, exec taskchat.ToolExecutor, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	for step := 0; step < l.maxSteps; step++ {
		cont, err := l.turn(ctx, session, tools, exec, &cfg)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return taskchat.ErrStepLimit
}

// turn executes a single reasoning step. It returns true if the loop should
// continue (tool calls were made), false if it should stop.
func (l *Loop) turn(ctx context.Context, session *taskchat.Session, tools []taskchat.Tool, exec taskchat.ToolExecutor, cfg *runConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cfg.phase(PhaseReasoning)

	req := taskchat.Request{
		Model:        cfg.model,
		SystemPrompt: session.SystemPrompt,
		Messages:     session.Messages,
		Tools:        tools,
		MaxTokens:    cfg.maxTokens,
	}

	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	// Drain the stream, forwarding events to handler if set.
	var streamErr error
	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		cfg.emit(evt)
	}

	// Get the assembled message (partial or complete).
	msg, msgErr := stream.Message()
	if msgErr != nil {
		if streamErr != nil {
			return false, streamErr
		}
		return false, msgErr
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	session.Messages = append(session.Messages, msg)
	session.Usage = session.Usage.Add(msg.Usage)
	session.UpdatedAt = time.Now()

	if streamErr != nil {
		return false, streamErr
	}

	calls := msg.ToolCalls()
	if len(calls) == 0 {
		if !msg.StopReason.Complete() {
			l.log.Warn().Str("stop_reason", string(msg.StopReason)).Msg("answer may be incomplete")
		}
		return false, nil
	}

	cfg.phase(PhaseToolExecuting)
	results := l.executeAll(ctx, exec, calls)

	// Results are appended as one batch in request order.
	for i, tc := range calls {
		res := results[i]
		text := res.Text()
		session.Messages = append(session.Messages, taskchat.ToolResultMessage{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Content:    res.Content,
			IsError:    res.IsError,
			Timestamp:  time.Now(),
		})
		session.ToolCalls = append(session.ToolCalls, taskchat.ToolInvocationRecord{
			ToolName:   tc.Name,
			Parameters: parameters(tc.Arguments),
			Result:     text,
		})
		cfg.emit(taskchat.EventToolResult{ID: tc.ID, ToolName: tc.Name, Content: text, IsError: res.IsError})
	}
	session.UpdatedAt = time.Now()

	return true, nil
}

// executeAll runs calls concurrently and returns their results indexed like
// calls. Executor errors and panics become generic IsError results.
func (l *Loop) executeAll(ctx context.Context, exec taskchat.ToolExecutor, calls []taskchat.ToolCallBlock) []*taskchat.ToolResult {
	results := make([]*taskchat.ToolResult, len(calls))
	p := pool.New().WithMaxGoroutines(max(l.maxParallel, 1))
	for i, tc := range calls {
		p.Go(func() {
			results[i] = l.execute(ctx, exec, tc)
		})
	}
	p.Wait()
	return results
}

func (l *Loop) execute(ctx context.Context, exec taskchat.ToolExecutor, tc taskchat.ToolCallBlock) *taskchat.ToolResult {
	var (
		pc      panics.Catcher
		res     *taskchat.ToolResult
		execErr error
	)
	pc.Try(func() {
		res, execErr = exec.Execute(ctx, tc.Name, tc.Arguments)
	})
	if r := pc.Recovered(); r != nil {
		execErr = fmt.Errorf("panic: %v", r.Value)
	}
	if execErr != nil {
		l.log.Error().Err(execErr).Str("tool", tc.Name).Str("tool_call_id", tc.ID).Msg("tool execution failed")
		return taskchat.ErrorResult("Error: " + taskchat.MsgUnexpected)
	}
	if res == nil {
		return taskchat.ErrorResult("Error: " + taskchat.MsgUnexpected)
	}
	return res
}

// parameters decodes tool call arguments for the invocation record. Arguments
// that are not a JSON object are recorded as an empty mapping.
func parameters(args json.RawMessage) map[string]any {
	params := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil || params == nil {
			return map[string]any{}
		}
	}
	return params
}
