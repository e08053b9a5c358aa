package taskchat

// StopReason indicates why the assistant stopped generating.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopLength  StopReason = "length"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
	StopUnknown StopReason = "unknown"
)

// Complete reports whether generation ended normally: a finished answer or
// a request for tools. A reply that stopped for any other reason may be cut
// short.
func (r StopReason) Complete() bool {
	return r == StopEndTurn || r == StopToolUse
}
