// Package tools provides the task tool catalog exposed to the reasoning
// capability. Each tool adapts its arguments to one backend operation and
// renders the outcome as plain text.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/fwojciec/taskchat"
	taskjson "github.com/fwojciec/taskchat/json"
	"github.com/rs/zerolog"
)

// Tool names.
const (
	AddTask      = "add_task"
	ListTasks    = "list_tasks"
	CompleteTask = "complete_task"
	DeleteTask   = "delete_task"
	UpdateTask   = "update_task"
)

// MaxTitleLength is the longest title the backend accepts, in characters.
const MaxTitleLength = 200

// Defaults returns the five task operations in catalog order.
func Defaults(client taskchat.OperationClient) []taskchat.Operation {
	return []taskchat.Operation{
		&addTask{client: client},
		&listTasks{client: client},
		&completeTask{client: client},
		&deleteTask{client: client},
		&updateTask{client: client},
	}
}

func failure(res taskchat.OperationResult) *taskchat.ToolResult {
	return taskchat.ErrorResult("Error: " + res.Message())
}

func tasksPath(userID string) string {
	return "/api/" + url.PathEscape(userID) + "/tasks"
}

func taskPath(userID string, id int64) string {
	return tasksPath(userID) + "/" + strconv.FormatInt(id, 10)
}

// invalidArgs logs the decode detail and answers with fixed guidance so
// that no parser message reaches the conversation.
func invalidArgs(ctx context.Context, tool string, err error) *taskchat.ToolResult {
	zerolog.Ctx(ctx).Debug().Err(err).Str("tool", tool).Msg("undecodable tool arguments")
	return taskchat.ErrorResult(invalidArgsText(tool, nil))
}

func invalidArgsText(tool string, fields []string) string {
	if len(fields) == 0 {
		return fmt.Sprintf("Error: invalid arguments for %s. Please check the task details and try again.", tool)
	}
	return fmt.Sprintf("Error: invalid arguments for %s (%s). Please check the task details and try again.", tool, strings.Join(fields, ", "))
}

// taskID decodes a JSON number holding a whole value, so 7 and 7.0 both
// name task 7.
type taskID int64

func (id *taskID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*id = taskID(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return errors.New("task id is not a whole number")
	}
	*id = taskID(f)
	return nil
}

// decodeTask decodes the task of a success payload, logging when it cannot.
func decodeTask(ctx context.Context, tool string, payload json.RawMessage) (taskchat.Task, bool) {
	task, err := taskjson.DecodeTask(payload)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tool", tool).Msg("undecodable task in backend response")
		return taskchat.Task{}, false
	}
	return task, true
}
