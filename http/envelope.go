package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMessageEmpty   = "MESSAGE_EMPTY"
	codeConvNotFound   = "CONVERSATION_NOT_FOUND"
	codeChatError      = "CHAT_ERROR"
	codeUnauthorized   = "UNAUTHORIZED"
	codeForbidden      = "FORBIDDEN"
	codeInvalidRequest = "INVALID_REQUEST"
	codeInternal       = "INTERNAL_ERROR"

	msgMessageEmpty   = "Please type a message"
	msgConvNotFound   = "Conversation not found"
	msgChatError      = "I'm having trouble processing your request. Please try again."
	msgUnauthorized   = "Authentication required"
	msgExpired        = "Token has expired"
	msgForbiddenChat  = "Cannot access another user's chat"
	msgForbiddenConvs = "Cannot access another user's conversations"
	msgInvalidRequest = "Invalid request body"
	msgInternal       = "An unexpected error occurred"
)

// envelope is the response shape shared with the task backend.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data"`
	Error   *errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeError writes a failure envelope. Conversation-level failures use
// status 200 like the rest of the API; only auth and server faults do not.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &errorDetail{Code: code, Message: message}})
}
