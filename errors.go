package taskchat

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamNotReady indicates Message() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNoIdentity indicates a run was started without a user id.
	ErrNoIdentity = errors.New("no user identity")

	// ErrScopeReleased indicates a tool ran after its run's scope was released.
	ErrScopeReleased = errors.New("request scope released")

	// ErrTurnTimeout indicates a chat turn exceeded its overall time budget.
	ErrTurnTimeout = errors.New("chat turn timed out")

	// ErrStepLimit indicates the reasoning loop did not produce a final answer
	// within its step budget.
	ErrStepLimit = errors.New("reasoning step limit reached")

	// ErrConversationNotFound indicates the conversation does not exist or
	// belongs to another user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrCredentialExpired indicates a credential that was valid but has
	// expired.
	ErrCredentialExpired = errors.New("credential expired")
)
