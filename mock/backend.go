package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/fwojciec/taskchat"
)

// BackendCall is one request observed by a TaskBackend.
type BackendCall struct {
	Method     string
	Path       string
	Credential string
	Body       any
}

type backendTask struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
}

// TaskBackend is an in-memory task service answering the backend's REST
// routes with envelope payloads. Use Client to obtain an OperationClient.
type TaskBackend struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*backendTask
	calls  []BackendCall
}

// NewTaskBackend returns an empty TaskBackend.
func NewTaskBackend() *TaskBackend {
	return &TaskBackend{nextID: 1, tasks: map[int64]*backendTask{}}
}

// Seed stores a task directly and returns its id.
func (b *TaskBackend) Seed(userID, title string, completed bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.tasks[id] = &backendTask{ID: id, UserID: userID, Title: title, Completed: completed}
	return id
}

// Calls returns the requests seen so far in arrival order.
func (b *TaskBackend) Calls() []BackendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendCall(nil), b.calls...)
}

// Client returns an OperationClient served by b.
func (b *TaskBackend) Client() *OperationClient {
	return &OperationClient{CallFn: b.call}
}

func (b *TaskBackend) call(_ context.Context, method, path, credential string, body any) taskchat.OperationResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, BackendCall{Method: method, Path: path, Credential: credential, Body: body})

	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	userID := parts[0]
	fields, _ := body.(map[string]string)

	if len(parts) == 2 {
		switch method {
		case http.MethodPost:
			id := b.nextID
			b.nextID++
			t := &backendTask{ID: id, UserID: userID, Title: fields["title"], Description: fields["description"]}
			b.tasks[id] = t
			return success(map[string]any{"task": t})
		case http.MethodGet:
			list := []*backendTask{}
			for id := b.nextID - 1; id > 0; id-- {
				if t, ok := b.tasks[id]; ok && t.UserID == userID {
					list = append(list, t)
				}
			}
			return success(map[string]any{"tasks": list})
		}
		return taskchat.Failure("Method not allowed")
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return taskchat.Failure("Task not found")
	}
	t, ok := b.tasks[id]
	if !ok || t.UserID != userID {
		return taskchat.Failure("Task not found")
	}
	switch method {
	case http.MethodPatch:
		t.Completed = !t.Completed
	case http.MethodDelete:
		delete(b.tasks, id)
		return success(map[string]any{"message": "Task deleted"})
	case http.MethodPut:
		if v, ok := fields["title"]; ok {
			t.Title = v
		}
		if v, ok := fields["description"]; ok {
			t.Description = v
		}
	}
	return success(map[string]any{"task": t})
}

func success(v any) taskchat.OperationResult {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return taskchat.Success(data)
}
