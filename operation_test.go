package taskchat_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
)

func TestOperationResult(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		r := taskchat.Success(json.RawMessage(`{"tasks":[]}`))
		assert.True(t, r.OK())
		assert.JSONEq(t, `{"tasks":[]}`, string(r.Payload()))
		assert.Empty(t, r.Message())
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		r := taskchat.Failure("Task not found")
		assert.False(t, r.OK())
		assert.Nil(t, r.Payload())
		assert.Equal(t, "Task not found", r.Message())
	})

	t.Run("failure without message", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, taskchat.MsgUnknown, taskchat.Failure("").Message())
	})
}
