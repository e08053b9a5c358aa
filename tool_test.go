package taskchat_test

import (
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
)

func TestToolResult_Text(t *testing.T) {
	t.Parallel()

	t.Run("joins text blocks", func(t *testing.T) {
		t.Parallel()
		r := &taskchat.ToolResult{Content: []taskchat.ContentBlock{
			taskchat.TextBlock{Text: "- [pending] ID 1: a"},
			taskchat.TextBlock{Text: "- [done] ID 2: b"},
		}}
		assert.Equal(t, "- [pending] ID 1: a\n- [done] ID 2: b", r.Text())
	})

	t.Run("nil result", func(t *testing.T) {
		t.Parallel()
		var r *taskchat.ToolResult
		assert.Empty(t, r.Text())
	})
}

func TestTextResult(t *testing.T) {
	t.Parallel()
	r := taskchat.TextResult("Task (ID: 3) has been deleted.")
	assert.False(t, r.IsError)
	assert.Equal(t, "Task (ID: 3) has been deleted.", r.Text())
}

func TestErrorResult(t *testing.T) {
	t.Parallel()
	r := taskchat.ErrorResult("Error: Task not found")
	assert.True(t, r.IsError)
	assert.Equal(t, "Error: Task not found", r.Text())
}
