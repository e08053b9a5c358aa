package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/taskchat"
	taskjson "github.com/fwojciec/taskchat/json"
	"github.com/rs/zerolog"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Response       string           `json:"response"`
	ToolCalls      []map[string]any `json:"tool_calls"`
}

// chatError is a failure reported to the client inside an envelope.
type chatError struct {
	status  int
	code    string
	message string
}

var (
	errMessageEmpty = &chatError{http.StatusOK, codeMessageEmpty, msgMessageEmpty}
	errConvNotFound = &chatError{http.StatusOK, codeConvNotFound, msgConvNotFound}
	errChat         = &chatError{http.StatusOK, codeChatError, msgChatError}
	errInternal     = &chatError{http.StatusInternalServerError, codeInternal, msgInternal}
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID, credential string) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, msgInvalidRequest)
		return
	}
	// The turn outlives a disconnecting client so that the reply is stored.
	ctx := context.WithoutCancel(r.Context())
	resp, cerr := s.converse(ctx, userID, credential, req, nil)
	if cerr != nil {
		writeError(w, cerr.status, cerr.code, cerr.message)
		return
	}
	writeSuccess(w, resp)
}

// converse runs one chat turn: it resolves the conversation, stores the
// user message, runs the assistant over the full history, and stores the
// reply. onEvent, when set, receives the events of the run.
func (s *Server) converse(ctx context.Context, userID, credential string, req chatRequest, onEvent func(taskchat.Event)) (chatResponse, *chatError) {
	log := zerolog.Ctx(ctx)
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return chatResponse{}, errMessageEmpty
	}

	conv, err := s.conversation(ctx, userID, req.ConversationID)
	if errors.Is(err, taskchat.ErrConversationNotFound) {
		return chatResponse{}, errConvNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("resolve conversation")
		return chatResponse{}, errInternal
	}

	stored, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("load history")
		return chatResponse{}, errInternal
	}
	history := append(taskchat.History(stored), taskchat.ChatMessage{Role: taskchat.RoleUser, Content: text})

	if _, err := s.store.AppendMessage(ctx, taskchat.StoredMessage{ConversationID: conv.ID, Role: taskchat.RoleUser, Content: text}); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("store user message")
		return chatResponse{}, errInternal
	}

	start := time.Now()
	reply, err := s.run(ctx, history, userID, credential, onEvent)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Dur("elapsed", time.Since(start)).Msg("assistant failed")
		return chatResponse{}, errChat
	}

	if _, err := s.store.AppendMessage(ctx, taskchat.StoredMessage{
		ConversationID: conv.ID,
		Role:           taskchat.RoleAssistant,
		Content:        reply.Response,
		ToolCalls:      reply.ToolCalls,
	}); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("store assistant message")
		return chatResponse{}, errInternal
	}
	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("touch conversation")
		return chatResponse{}, errInternal
	}

	log.Info().Str("conversation_id", conv.ID).Int("tool_calls", len(reply.ToolCalls)).Dur("elapsed", time.Since(start)).Msg("chat turn answered")
	return chatResponse{
		ConversationID: conv.ID,
		Response:       reply.Response,
		ToolCalls:      taskjson.ToolCallsValue(reply.ToolCalls),
	}, nil
}

func (s *Server) run(ctx context.Context, history []taskchat.ChatMessage, userID, credential string, onEvent func(taskchat.Event)) (taskchat.ChatReply, error) {
	if sa, ok := s.assistant.(taskchat.StreamingAssistant); ok && onEvent != nil {
		return sa.RunStream(ctx, history, userID, credential, onEvent)
	}
	return s.assistant.Run(ctx, history, userID, credential)
}

// conversation returns the named conversation, or the user's single
// conversation when id is empty.
func (s *Server) conversation(ctx context.Context, userID, id string) (taskchat.Conversation, error) {
	if id != "" {
		return s.store.FindConversation(ctx, userID, id)
	}
	return s.store.EnsureConversation(ctx, userID)
}
