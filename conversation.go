package taskchat

import (
	"context"
	"time"
)

// Conversation is a persisted chat thread owned by one user.
type Conversation struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredMessage is one persisted turn of a conversation. ToolCalls is set
// only on assistant messages that invoked tools.
type StoredMessage struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	ToolCalls      []ToolInvocationRecord
	CreatedAt      time.Time
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// EnsureConversation returns the user's most recent conversation,
	// creating one if none exists.
	EnsureConversation(ctx context.Context, userID string) (Conversation, error)
	// FindConversation returns ErrConversationNotFound when id does not
	// exist or belongs to another user.
	FindConversation(ctx context.Context, userID, id string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]StoredMessage, error)
	AppendMessage(ctx context.Context, m StoredMessage) (StoredMessage, error)
	TouchConversation(ctx context.Context, id string) error
}

// History converts stored messages into chat history entries.
func History(msgs []StoredMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
