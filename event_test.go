package taskchat_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
)

func TestEventTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()
	events := []taskchat.Event{
		taskchat.EventTextDelta{Index: 0, Delta: "hello"},
		taskchat.EventThinkingDelta{Index: 0, Delta: "reasoning"},
		taskchat.EventToolCallBegin{ID: "tc_1", Name: "list_tasks"},
		taskchat.EventToolCallDelta{ID: "tc_1", Delta: `{"status":"`},
		taskchat.EventToolCallEnd{Call: taskchat.ToolCallBlock{
			ID:        "tc_1",
			Name:      "list_tasks",
			Arguments: json.RawMessage(`{"status":"pending"}`),
		}},
		taskchat.EventToolResult{ID: "tc_1", ToolName: "list_tasks", Content: "You have no pending tasks."},
	}
	assert.Len(t, events, 6, "update slice and switch when adding new Event types")
	for _, e := range events {
		switch e.(type) {
		case taskchat.EventTextDelta:
		case taskchat.EventThinkingDelta:
		case taskchat.EventToolCallBegin:
		case taskchat.EventToolCallDelta:
		case taskchat.EventToolCallEnd:
		case taskchat.EventToolResult:
		default:
			t.Fatalf("unexpected event type: %T", e)
		}
	}
}
