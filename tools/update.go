package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/taskchat"
)

// UpdateGuidance is returned when an update names no field to change.
const UpdateGuidance = "Please specify what to update (title or description)."

type updateArgs struct {
	TaskID      taskID `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTask struct {
	client taskchat.OperationClient
}

func (t *updateTask) Definition() taskchat.Tool {
	return taskchat.Tool{
		Name:        UpdateTask,
		Description: "Update a task's title or description. Use this when the user wants to change, rename, edit, or modify a task.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"task_id": {
					"type": "integer",
					"description": "ID of the task"
				},
				"title": {
					"type": "string",
					"maxLength": 200,
					"description": "New title, omit to keep the current one"
				},
				"description": {
					"type": "string",
					"description": "New description, omit to keep the current one"
				}
			},
			"required": ["task_id"]
		}`),
	}
}

// Invoke treats empty strings as absent fields. With nothing to change it
// answers with guidance and makes no backend call.
func (t *updateTask) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	var a updateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(ctx, UpdateTask, err)
	}
	body := map[string]string{}
	if a.Title != "" {
		body["title"] = a.Title
	}
	if a.Description != "" {
		body["description"] = a.Description
	}
	if len(body) == 0 {
		return taskchat.TextResult(UpdateGuidance)
	}
	res := t.client.Call(ctx, http.MethodPut, taskPath(id.UserID, int64(a.TaskID)), id.Credential, body)
	if !res.OK() {
		return failure(res)
	}
	task, ok := decodeTask(ctx, UpdateTask, res.Payload())
	if !ok {
		return taskchat.TextResult(fmt.Sprintf("Task (ID: %d) has been updated.", a.TaskID))
	}
	return taskchat.TextResult(fmt.Sprintf("Task (ID: %d) has been updated. New title: '%s'", a.TaskID, task.Title))
}
