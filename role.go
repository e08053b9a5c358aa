package taskchat

// Role represents the role of a message sender.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Valid reports whether r may appear in persisted conversation history.
// Tool results only exist inside a single run and are never replayed.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
