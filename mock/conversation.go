package mock

import (
	"context"

	"github.com/fwojciec/taskchat"
)

// ConversationStore is a test double for taskchat.ConversationStore.
type ConversationStore struct {
	EnsureConversationFn func(ctx context.Context, userID string) (taskchat.Conversation, error)
	FindConversationFn   func(ctx context.Context, userID, id string) (taskchat.Conversation, error)
	ListConversationsFn  func(ctx context.Context, userID string) ([]taskchat.Conversation, error)
	ListMessagesFn       func(ctx context.Context, conversationID string) ([]taskchat.StoredMessage, error)
	AppendMessageFn      func(ctx context.Context, m taskchat.StoredMessage) (taskchat.StoredMessage, error)
	TouchConversationFn  func(ctx context.Context, id string) error
}

func (s *ConversationStore) EnsureConversation(ctx context.Context, userID string) (taskchat.Conversation, error) {
	return s.EnsureConversationFn(ctx, userID)
}

func (s *ConversationStore) FindConversation(ctx context.Context, userID, id string) (taskchat.Conversation, error) {
	return s.FindConversationFn(ctx, userID, id)
}

func (s *ConversationStore) ListConversations(ctx context.Context, userID string) ([]taskchat.Conversation, error) {
	return s.ListConversationsFn(ctx, userID)
}

func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string) ([]taskchat.StoredMessage, error) {
	return s.ListMessagesFn(ctx, conversationID)
}

func (s *ConversationStore) AppendMessage(ctx context.Context, m taskchat.StoredMessage) (taskchat.StoredMessage, error) {
	return s.AppendMessageFn(ctx, m)
}

func (s *ConversationStore) TouchConversation(ctx context.Context, id string) error {
	return s.TouchConversationFn(ctx, id)
}
