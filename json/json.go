// Package json decodes the task backend's response envelope and encodes the
// records persisted alongside conversations.
package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/taskchat"
)

// envelope is the uniform response wrapper of the task backend.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorDetail    `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// taskDTO mirrors the backend's task representation.
type taskDTO struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// DecodeEnvelope parses a backend response body. A body that is not a valid
// envelope is an error; an envelope reporting failure becomes a Failure
// result carrying the backend's message.
func DecodeEnvelope(body []byte) (taskchat.OperationResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return taskchat.OperationResult{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if !env.Success {
		var msg string
		if env.Error != nil {
			msg = env.Error.Message
		}
		return taskchat.Failure(msg), nil
	}
	return taskchat.Success(env.Data), nil
}

// DecodeTask extracts the task stored under "task" in a success payload.
func DecodeTask(payload json.RawMessage) (taskchat.Task, error) {
	var data struct {
		Task *taskDTO `json:"task"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return taskchat.Task{}, fmt.Errorf("unmarshal task: %w", err)
	}
	if data.Task == nil {
		return taskchat.Task{}, fmt.Errorf("unmarshal task: missing task")
	}
	return data.Task.toTask(), nil
}

// DecodeTasks extracts the tasks stored under "tasks" in a success payload.
// A missing list decodes as empty.
func DecodeTasks(payload json.RawMessage) ([]taskchat.Task, error) {
	var data struct {
		Tasks []taskDTO `json:"tasks"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	tasks := make([]taskchat.Task, len(data.Tasks))
	for i, dto := range data.Tasks {
		tasks[i] = dto.toTask()
	}
	return tasks, nil
}

func (d taskDTO) toTask() taskchat.Task {
	t := taskchat.Task{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		Completed: d.Completed,
		CreatedAt: parseTime(d.CreatedAt),
		UpdatedAt: parseTime(d.UpdatedAt),
	}
	if d.Description != nil {
		t.Description = *d.Description
	}
	return t
}

// timeLayouts accepts offset-qualified and naive ISO-8601 timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// parseTime returns the zero time for values it cannot read. Timestamps are
// informational only and never reach a tool's output.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
