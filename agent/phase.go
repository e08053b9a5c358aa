package agent

// Phase is a state of one orchestrated run.
//
//	Idle → ContextBound → Reasoning ⇄ ToolExecuting → Responding → ContextReleased
//
// ContextReleased is always reached once ContextBound was, whatever the
// outcome of the run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseContextBound
	PhaseReasoning
	PhaseToolExecuting
	PhaseResponding
	PhaseContextReleased
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseContextBound:
		return "context_bound"
	case PhaseReasoning:
		return "reasoning"
	case PhaseToolExecuting:
		return "tool_executing"
	case PhaseResponding:
		return "responding"
	case PhaseContextReleased:
		return "context_released"
	}
	return "unknown"
}
