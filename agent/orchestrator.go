package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/taskchat"
	"github.com/rs/zerolog"
)

// DefaultTurnTimeout bounds one chat turn end to end.
const DefaultTurnTimeout = 60 * time.Second

// Catalog is the tool catalog an Orchestrator plumbs into each run.
type Catalog interface {
	Tools() []taskchat.Tool
	Bind(scope *taskchat.Scope) taskchat.ToolExecutor
}

// Interface compliance check.
var _ taskchat.StreamingAssistant = (*Orchestrator)(nil)

// Orchestrator answers a conversation turn: it binds the user's identity to
// a fresh scope, runs the loop with the catalog bound to that scope, and
// releases the scope when the run ends.
type Orchestrator struct {
	loop         *Loop
	catalog      Catalog
	systemPrompt string
	model        string
	maxTokens    int
	timeout      time.Duration
	onPhase      func(Phase)
	log          zerolog.Logger
}

// OrchestratorOption configures an [Orchestrator].
type OrchestratorOption func(*Orchestrator)

// WithSystemPrompt overrides DefaultSystemPrompt.
func WithSystemPrompt(p string) OrchestratorOption {
	return func(o *Orchestrator) { o.systemPrompt = p }
}

// WithDefaultModel sets the model requested from the provider.
func WithDefaultModel(model string) OrchestratorOption {
	return func(o *Orchestrator) { o.model = model }
}

// WithOutputTokens sets the output token limit requested from the provider.
func WithOutputTokens(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithTurnTimeout bounds each run. Zero disables the bound.
func WithTurnTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithPhaseObserver registers a callback for phase transitions of every run.
// It may be called concurrently by different runs.
func WithPhaseObserver(h func(Phase)) OrchestratorOption {
	return func(o *Orchestrator) { o.onPhase = h }
}

// WithOrchestratorLogger sets the orchestrator's logger.
func WithOrchestratorLogger(l zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(loop *Loop, catalog Catalog, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		loop:         loop,
		catalog:      catalog,
		systemPrompt: DefaultSystemPrompt,
		timeout:      DefaultTurnTimeout,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) phase(p Phase) {
	if o.onPhase != nil {
		o.onPhase(p)
	}
}

// Run answers the last user message of history for userID. Tool and backend
// failures are part of the reply text. Run returns an error only when the
// history is unusable, the identity is missing, the provider fails, or the
// turn exceeds its time budget (ErrTurnTimeout).
func (o *Orchestrator) Run(ctx context.Context, history []taskchat.ChatMessage, userID, credential string) (taskchat.ChatReply, error) {
	return o.RunStream(ctx, history, userID, credential, nil)
}

// RunStream is Run with onEvent receiving every provider event and tool
// result of the turn. A nil onEvent is allowed.
func (o *Orchestrator) RunStream(ctx context.Context, history []taskchat.ChatMessage, userID, credential string, onEvent func(taskchat.Event)) (taskchat.ChatReply, error) {
	if err := taskchat.ValidateHistory(history); err != nil {
		return taskchat.ChatReply{}, fmt.Errorf("agent: %w", err)
	}
	scope, err := taskchat.Bind(userID, credential)
	if err != nil {
		return taskchat.ChatReply{}, fmt.Errorf("agent: %w", err)
	}
	o.phase(PhaseContextBound)
	defer func() {
		scope.Release()
		o.phase(PhaseContextReleased)
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	now := start.UTC()
	session := &taskchat.Session{
		SystemPrompt: o.systemPrompt,
		Messages:     taskchat.FromHistory(history),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	runOpts := []RunOption{
		WithModel(o.model),
		WithMaxTokens(o.maxTokens),
		WithPhaseHandler(o.phase),
	}
	if onEvent != nil {
		runOpts = append(runOpts, WithEventHandler(onEvent))
	}
	err = o.loop.Run(ctx, session, o.catalog.Tools(), o.catalog.Bind(scope), runOpts...)
	log := o.log.With().Str("user_id", userID).Int("tool_calls", len(session.ToolCalls)).Dur("elapsed", time.Since(start)).Logger()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Err(err).Msg("chat turn timed out")
			return taskchat.ChatReply{}, fmt.Errorf("agent: %w", taskchat.ErrTurnTimeout)
		}
		log.Error().Err(err).Msg("chat turn failed")
		return taskchat.ChatReply{}, fmt.Errorf("agent: %w", err)
	}

	o.phase(PhaseResponding)
	final, _ := session.LastAssistant()
	log.Info().Int("input_tokens", session.Usage.InputTokens).Int("output_tokens", session.Usage.OutputTokens).Msg("chat turn completed")
	return taskchat.ChatReply{Response: final.Text(), ToolCalls: session.ToolCalls}, nil
}
