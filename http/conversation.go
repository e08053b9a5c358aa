package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/fwojciec/taskchat"
	taskjson "github.com/fwojciec/taskchat/json"
	"github.com/rs/zerolog"
)

type conversationJSON struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type messageJSON struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []map[string]any `json:"tool_calls,omitempty"`
	CreatedAt      string           `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// handleConversations returns the user's conversation, or null when the
// user has not chatted yet.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, userID, _ string) {
	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list conversations")
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}
	data := map[string]any{"conversation": nil}
	if len(convs) > 0 {
		c := convs[0]
		data["conversation"] = conversationJSON{
			ID:        c.ID,
			UserID:    c.UserID,
			CreatedAt: formatTime(c.CreatedAt),
			UpdatedAt: formatTime(c.UpdatedAt),
		}
	}
	writeSuccess(w, data)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, userID, _ string) {
	ctx := r.Context()
	conv, err := s.store.FindConversation(ctx, userID, r.PathValue("conversation_id"))
	if errors.Is(err, taskchat.ErrConversationNotFound) {
		writeError(w, http.StatusOK, codeConvNotFound, msgConvNotFound)
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("find conversation")
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list messages")
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}
	out := make([]messageJSON, len(msgs))
	for i, m := range msgs {
		out[i] = messageJSON{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           string(m.Role),
			Content:        m.Content,
			CreatedAt:      formatTime(m.CreatedAt),
		}
		if len(m.ToolCalls) > 0 {
			out[i].ToolCalls = taskjson.ToolCallsValue(m.ToolCalls)
		}
	}
	writeSuccess(w, map[string]any{"messages": out})
}
