package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/taskchat"
)

type addArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type addTask struct {
	client taskchat.OperationClient
}

func (t *addTask) Definition() taskchat.Tool {
	return taskchat.Tool{
		Name:        AddTask,
		Description: "Create a new task in the user's todo list. Use this when the user wants to add, create, or remember something.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {
					"type": "string",
					"minLength": 1,
					"maxLength": 200,
					"description": "Short title of the task"
				},
				"description": {
					"type": "string",
					"description": "Optional longer description"
				}
			},
			"required": ["title"]
		}`),
	}
}

func (t *addTask) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	var a addArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(ctx, AddTask, err)
	}
	body := map[string]string{"title": a.Title}
	if a.Description != "" {
		body["description"] = a.Description
	}
	res := t.client.Call(ctx, http.MethodPost, tasksPath(id.UserID), id.Credential, body)
	if !res.OK() {
		return failure(res)
	}
	title, ref := a.Title, "unknown"
	if task, ok := decodeTask(ctx, AddTask, res.Payload()); ok {
		if task.Title != "" {
			title = task.Title
		}
		ref = fmt.Sprint(task.ID)
	}
	return taskchat.TextResult(fmt.Sprintf("Created task: '%s' (ID: %s)", title, ref))
}
