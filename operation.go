package taskchat

import (
	"context"
	"encoding/json"
)

// Canonical transport failure messages surfaced to the user.
const (
	MsgTimeout     = "Request timed out. Please try again."
	MsgUnavailable = "Task service is temporarily unavailable. Please try again."
	MsgUnexpected  = "An unexpected error occurred while processing your request."
	MsgUnknown     = "Unknown error"
)

// OperationClient performs one call against the task backend on behalf of a
// user. It never returns a Go error: every failure is folded into the result.
type OperationClient interface {
	Call(ctx context.Context, method, path, credential string, body any) OperationResult
}

// OperationResult is either a success carrying the envelope's data payload
// or a failure carrying a user-facing message.
type OperationResult struct {
	ok      bool
	payload json.RawMessage
	message string
}

// Success returns a successful result.
func Success(payload json.RawMessage) OperationResult {
	return OperationResult{ok: true, payload: payload}
}

// Failure returns a failed result. An empty message becomes MsgUnknown.
func Failure(message string) OperationResult {
	if message == "" {
		message = MsgUnknown
	}
	return OperationResult{message: message}
}

func (r OperationResult) OK() bool                 { return r.ok }
func (r OperationResult) Payload() json.RawMessage { return r.payload }
func (r OperationResult) Message() string          { return r.message }
