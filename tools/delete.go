package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/taskchat"
)

type deleteTask struct {
	client taskchat.OperationClient
}

func (t *deleteTask) Definition() taskchat.Tool {
	return taskchat.Tool{
		Name:        DeleteTask,
		Description: "Delete a task from the user's todo list. Use this when the user wants to remove or delete a task.",
		Parameters:  json.RawMessage(taskIDSchema),
	}
}

func (t *deleteTask) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(ctx, DeleteTask, err)
	}
	res := t.client.Call(ctx, http.MethodDelete, taskPath(id.UserID, int64(a.TaskID)), id.Credential, nil)
	if !res.OK() {
		return failure(res)
	}
	return taskchat.TextResult(fmt.Sprintf("Task (ID: %d) has been deleted.", a.TaskID))
}
