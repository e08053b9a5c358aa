package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/taskchat"
	taskjson "github.com/fwojciec/taskchat/json"
	"github.com/rs/zerolog"
)

type listArgs struct {
	Status string `json:"status"`
}

type listTasks struct {
	client taskchat.OperationClient
}

func (t *listTasks) Definition() taskchat.Tool {
	return taskchat.Tool{
		Name:        ListTasks,
		Description: "List tasks from the user's todo list. Use this when the user wants to see, show, or view their tasks. The status parameter filters: 'all' for everything, 'pending' for incomplete tasks, 'completed' for done tasks.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"status": {
					"type": "string",
					"enum": ["all", "pending", "completed"],
					"description": "Which tasks to include, defaults to all"
				}
			}
		}`),
	}
}

func (t *listTasks) Invoke(ctx context.Context, id taskchat.Identity, args json.RawMessage) *taskchat.ToolResult {
	var a listArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(ctx, ListTasks, err)
	}
	filter, err := taskchat.ParseStatusFilter(a.Status)
	if err != nil {
		return invalidArgs(ctx, ListTasks, err)
	}
	res := t.client.Call(ctx, http.MethodGet, tasksPath(id.UserID), id.Credential, nil)
	if !res.OK() {
		return failure(res)
	}
	tasks, err := taskjson.DecodeTasks(res.Payload())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tool", ListTasks).Msg("undecodable tasks in backend response")
		return taskchat.ErrorResult("Error: " + taskchat.MsgUnexpected)
	}
	return taskchat.TextResult(renderTasks(tasks, filter))
}

// renderTasks formats the tasks passing filter one per line, or the
// filter's empty-state sentence.
func renderTasks(tasks []taskchat.Task, filter taskchat.StatusFilter) string {
	var lines []string
	for _, task := range tasks {
		if !filter.Match(task) {
			continue
		}
		check := "pending"
		if task.Completed {
			check = "done"
		}
		line := fmt.Sprintf("- [%s] ID %d: %s", check, task.ID, task.Title)
		if task.Description != "" {
			line += " - " + task.Description
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n")
	}
	switch filter {
	case taskchat.StatusPending:
		return "You have no pending tasks."
	case taskchat.StatusCompleted:
		return "You haven't completed any tasks yet."
	}
	return "You have no tasks yet. Would you like to add one?"
}
