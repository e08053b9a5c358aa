package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/taskchat"
)

type taskIDArgs struct {
	TaskID taskID `json:"task_id"`
}

const taskIDSchema = `{
	"type": "object",
	"properties": {
		"task_id": {
			"type": "integer",
			"description": "ID of the task"
		}
	},
	"required": ["task_id"]
}`

type completeTask struct {
	client taskchat.OperationClient
}

func (t *completeTask) Definition() taskchat.Tool {
	return taskchat.Tool{
		Name:        CompleteTask,
		Description: "Mark a task as complete (or toggle its completion). Use this when the user wants to finish, complete, or mark a task as done.",
		Parameters:  json.RawMessage(taskIDSchema),
	}
}

// Invoke toggles completion; calling it on a completed task reopens it.
func (t *completeTask) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(ctx, CompleteTask, err)
	}
	res := t.client.Call(ctx, http.MethodPatch, taskPath(id.UserID, int64(a.TaskID))+"/complete", id.Credential, nil)
	if !res.OK() {
		return failure(res)
	}
	task, ok := decodeTask(ctx, CompleteTask, res.Payload())
	if !ok {
		return taskchat.TextResult(fmt.Sprintf("Task (ID: %d) has been toggled.", a.TaskID))
	}
	state := "reopened"
	if task.Completed {
		state = "completed"
	}
	return taskchat.TextResult(fmt.Sprintf("Task '%s' (ID: %d) has been %s.", task.Title, a.TaskID, state))
}
