package gemini_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages(t *testing.T) {
	t.Parallel()

	t.Run("user and assistant text", func(t *testing.T) {
		t.Parallel()
		got, err := gemini.ConvertMessages([]taskchat.Message{
			taskchat.UserMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "Add milk"}}},
			taskchat.AssistantMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "Done."}}},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "user", got[0].Role)
		assert.Equal(t, "Add milk", got[0].Parts[0].Text)
		assert.Equal(t, "model", got[1].Role)
		assert.Equal(t, "Done.", got[1].Parts[0].Text)
	})

	t.Run("empty messages dropped", func(t *testing.T) {
		t.Parallel()
		got, err := gemini.ConvertMessages([]taskchat.Message{
			taskchat.AssistantMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{}}},
			taskchat.UserMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "hi"}}},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "user", got[0].Role)
	})

	t.Run("thinking keeps signature", func(t *testing.T) {
		t.Parallel()
		got, err := gemini.ConvertMessages([]taskchat.Message{
			taskchat.AssistantMessage{Content: []taskchat.ContentBlock{
				taskchat.ThinkingBlock{Thinking: "check pending first", Signature: []byte("sig")},
				taskchat.TextBlock{Text: "Here you go"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, got[0].Parts, 2)
		assert.True(t, got[0].Parts[0].Thought)
		assert.Equal(t, []byte("sig"), got[0].Parts[0].ThoughtSignature)
	})

	t.Run("tool calls and merged results", func(t *testing.T) {
		t.Parallel()
		got, err := gemini.ConvertMessages([]taskchat.Message{
			taskchat.AssistantMessage{Content: []taskchat.ContentBlock{
				taskchat.ToolCallBlock{ID: "c1", Name: "complete_task", Arguments: json.RawMessage(`{"task_id":3}`)},
				taskchat.ToolCallBlock{ID: "c2", Name: "list_tasks"},
			}},
			taskchat.ToolResultMessage{ToolCallID: "c1", ToolName: "complete_task", Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "Task 'milk' (ID: 3) has been completed."}}},
			taskchat.ToolResultMessage{ToolCallID: "c2", ToolName: "list_tasks", Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "Error: Task not found"}}, IsError: true},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)

		call := got[0].Parts[0].FunctionCall
		require.NotNil(t, call)
		assert.Equal(t, "c1", call.ID)
		assert.Equal(t, float64(3), call.Args["task_id"])
		assert.Nil(t, got[0].Parts[1].FunctionCall.Args)

		assert.Equal(t, "user", got[1].Role)
		require.Len(t, got[1].Parts, 2)
		assert.Equal(t, "Task 'milk' (ID: 3) has been completed.", got[1].Parts[0].FunctionResponse.Response["output"])
		assert.Equal(t, "Error: Task not found", got[1].Parts[1].FunctionResponse.Response["error"])
		assert.NotContains(t, got[1].Parts[1].FunctionResponse.Response, "output")
	})

	t.Run("malformed arguments", func(t *testing.T) {
		t.Parallel()
		_, err := gemini.ConvertMessages([]taskchat.Message{
			taskchat.AssistantMessage{Content: []taskchat.ContentBlock{
				taskchat.ToolCallBlock{ID: "c1", Name: "add_task", Arguments: json.RawMessage(`{`)},
			}},
		})
		assert.ErrorContains(t, err, "gemini: tool call c1 arguments")
	})
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	got, err := gemini.ConvertTools([]taskchat.Tool{
		{Name: "add_task", Description: "Create a task", Parameters: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"}},"required":["title"]}`)},
		{Name: "list_tasks", Description: "List tasks", Parameters: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].FunctionDeclarations, 2)
	assert.Equal(t, "add_task", got[0].FunctionDeclarations[0].Name)
	assert.Equal(t, "Create a task", got[0].FunctionDeclarations[0].Description)
	assert.Equal(t, "list_tasks", got[0].FunctionDeclarations[1].Name)

	none, err := gemini.ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = gemini.ConvertTools([]taskchat.Tool{{Name: "bad", Parameters: json.RawMessage(`nope`)}})
	assert.ErrorContains(t, err, "gemini: tool bad schema")
}
