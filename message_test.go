package taskchat_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()
	messages := []taskchat.Message{
		taskchat.UserMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "hello"}}},
		taskchat.AssistantMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "hi"}}},
		taskchat.ToolResultMessage{ToolCallID: "tc_1", ToolName: "add_task"},
	}
	for _, msg := range messages {
		switch msg.(type) {
		case taskchat.UserMessage:
		case taskchat.AssistantMessage:
		case taskchat.ToolResultMessage:
		default:
			t.Fatalf("unexpected message type: %T", msg)
		}
	}
}

func TestMessage_Role(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  taskchat.Message
		want taskchat.Role
	}{
		{"UserMessage", taskchat.UserMessage{}, taskchat.RoleUser},
		{"AssistantMessage", taskchat.AssistantMessage{}, taskchat.RoleAssistant},
		{"ToolResultMessage", taskchat.ToolResultMessage{}, taskchat.RoleToolResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.msg.Role())
		})
	}
}

func TestAssistantMessage_Text(t *testing.T) {
	t.Parallel()
	msg := taskchat.AssistantMessage{Content: []taskchat.ContentBlock{
		taskchat.ThinkingBlock{Thinking: "hmm"},
		taskchat.TextBlock{Text: "first"},
		taskchat.ToolCallBlock{ID: "tc_1", Name: "list_tasks"},
		taskchat.TextBlock{Text: ""},
		taskchat.TextBlock{Text: "second"},
	}}
	assert.Equal(t, "first\nsecond", msg.Text())
}

func TestAssistantMessage_ToolCalls(t *testing.T) {
	t.Parallel()
	msg := taskchat.AssistantMessage{Content: []taskchat.ContentBlock{
		taskchat.ToolCallBlock{ID: "tc_1", Name: "add_task", Arguments: json.RawMessage(`{"title":"a"}`)},
		taskchat.TextBlock{Text: "adding both"},
		taskchat.ToolCallBlock{ID: "tc_2", Name: "add_task", Arguments: json.RawMessage(`{"title":"b"}`)},
	}}
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tc_1", calls[0].ID)
	assert.Equal(t, "tc_2", calls[1].ID)
}

func TestFromHistory(t *testing.T) {
	t.Parallel()
	msgs := taskchat.FromHistory([]taskchat.ChatMessage{
		{Role: taskchat.RoleUser, Content: "Add buy milk"},
		{Role: taskchat.RoleAssistant, Content: "Created task"},
		{Role: taskchat.RoleUser, Content: "thanks"},
	})
	require.Len(t, msgs, 3)

	um, ok := msgs[0].(taskchat.UserMessage)
	require.True(t, ok)
	assert.Equal(t, []taskchat.ContentBlock{taskchat.TextBlock{Text: "Add buy milk"}}, um.Content)

	am, ok := msgs[1].(taskchat.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "Created task", am.Text())

	_, ok = msgs[2].(taskchat.UserMessage)
	assert.True(t, ok)
}

func TestFromHistory_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, taskchat.FromHistory(nil))
}
