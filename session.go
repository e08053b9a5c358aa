package taskchat

import "time"

// Session is the working transcript of a single run. It starts as the
// replayed conversation history and grows with assistant and tool result
// messages as the reasoning loop progresses.
type Session struct {
	ID           string
	Messages     []Message
	SystemPrompt string
	ToolCalls    []ToolInvocationRecord
	Usage        Usage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LastAssistant returns the most recent assistant message, if any.
func (s *Session) LastAssistant() (AssistantMessage, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if am, ok := s.Messages[i].(AssistantMessage); ok {
			return am, true
		}
	}
	return AssistantMessage{}, false
}
