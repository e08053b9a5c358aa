package tools_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/mock"
	"github.com/fwojciec/taskchat/tools"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bind(t *testing.T, client taskchat.OperationClient, userID, credential string) taskchat.ToolExecutor {
	t.Helper()
	reg, err := tools.New(client)
	require.NoError(t, err)
	scope, err := taskchat.Bind(userID, credential)
	require.NoError(t, err)
	t.Cleanup(scope.Release)
	return reg.Bind(scope)
}

func execute(t *testing.T, exec taskchat.ToolExecutor, name, args string) *taskchat.ToolResult {
	t.Helper()
	res, err := exec.Execute(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestRegistry_Tools(t *testing.T) {
	t.Parallel()
	reg, err := tools.New(mock.NewTaskBackend().Client())
	require.NoError(t, err)

	var names []string
	for _, tool := range reg.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.True(t, json.Valid(tool.Parameters), tool.Name)
	}
	assert.Equal(t, []string{"add_task", "list_tasks", "complete_task", "delete_task", "update_task"}, names)
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	op := func(name, schema string) *mock.Operation {
		return &mock.Operation{DefinitionFn: func() taskchat.Tool {
			return taskchat.Tool{Name: name, Parameters: json.RawMessage(schema)}
		}}
	}

	t.Run("rejects duplicates", func(t *testing.T) {
		t.Parallel()
		_, err := tools.NewRegistry([]taskchat.Operation{op("a", `{"type":"object"}`), op("a", `{"type":"object"}`)})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rejects invalid schema", func(t *testing.T) {
		t.Parallel()
		_, err := tools.NewRegistry([]taskchat.Operation{op("a", `{"type":`)})
		assert.Error(t, err)
	})
}

func TestExecutor(t *testing.T) {
	t.Parallel()

	t.Run("unknown tool", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "drop_database", `{}`)
		assert.True(t, res.IsError)
		assert.Equal(t, "Error: unknown tool: drop_database", res.Text())
		assert.Empty(t, b.Calls())
	})

	t.Run("invalid arguments make no backend call", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		exec := bind(t, b.Client(), "u1", "tok")
		for _, tt := range []struct{ name, args, want string }{
			{"add_task", `{"title":""}`, "Error: invalid arguments for add_task (title). Please check the task details and try again."},
			{"list_tasks", `{"status":"archived"}`, "Error: invalid arguments for list_tasks (status). Please check the task details and try again."},
			{"delete_task", `{"task_id":"forty-two"}`, "Error: invalid arguments for delete_task (task_id). Please check the task details and try again."},
			{"delete_task", `{"task_id":1.5}`, "Error: invalid arguments for delete_task (task_id). Please check the task details and try again."},
			{"complete_task", `{}`, "Error: invalid arguments for complete_task (task_id). Please check the task details and try again."},
			{"update_task", `not json`, "Error: invalid arguments for update_task. Please check the task details and try again."},
			{"add_task", `["buy milk"]`, "Error: invalid arguments for add_task. Please check the task details and try again."},
		} {
			res := execute(t, exec, tt.name, tt.args)
			assert.True(t, res.IsError, tt.args)
			assert.Equal(t, tt.want, res.Text())
			assert.NotContains(t, res.Text(), "json:")
		}
		assert.Empty(t, b.Calls())
	})

	t.Run("null optional fields count as absent", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		exec := bind(t, b.Client(), "u1", "tok")

		res := execute(t, exec, "add_task", `{"title":"buy milk","description":null}`)
		assert.False(t, res.IsError, res.Text())
		assert.Equal(t, "Created task: 'buy milk' (ID: 1)", res.Text())

		res = execute(t, exec, "list_tasks", `{"status":null}`)
		assert.Equal(t, "- [pending] ID 1: buy milk", res.Text())

		res = execute(t, exec, "update_task", `{"task_id":1,"title":"buy oat milk","description":null}`)
		assert.Equal(t, "Task (ID: 1) has been updated. New title: 'buy oat milk'", res.Text())

		calls := b.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, map[string]string{"title": "buy milk"}, calls[0].Body)
		assert.Equal(t, map[string]string{"title": "buy oat milk"}, calls[2].Body)
	})

	t.Run("whole-number ids written as floats", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		b.Seed("u1", "pay rent", false)
		exec := bind(t, b.Client(), "u1", "tok")

		res := execute(t, exec, "complete_task", `{"task_id":1.0}`)
		assert.False(t, res.IsError, res.Text())
		assert.Equal(t, "Task 'pay rent' (ID: 1) has been completed.", res.Text())

		res = execute(t, exec, "delete_task", `{"task_id":1e0}`)
		assert.Equal(t, "Task (ID: 1) has been deleted.", res.Text())
	})

	t.Run("title over limit is rejected", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "add_task", fmt.Sprintf(`{"title":%q}`, strings.Repeat("é", tools.MaxTitleLength+1)))
		assert.True(t, res.IsError)
		assert.Empty(t, b.Calls())
	})

	t.Run("title at limit is accepted", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "add_task", fmt.Sprintf(`{"title":%q}`, strings.Repeat("é", tools.MaxTitleLength)))
		assert.False(t, res.IsError)
	})

	t.Run("empty arguments default to an empty object", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "list_tasks", ``)
		assert.Equal(t, "You have no tasks yet. Would you like to add one?", res.Text())
	})

	t.Run("released scope is an error", func(t *testing.T) {
		t.Parallel()
		reg, err := tools.New(mock.NewTaskBackend().Client())
		require.NoError(t, err)
		scope, err := taskchat.Bind("u1", "tok")
		require.NoError(t, err)
		exec := reg.Bind(scope)
		scope.Release()
		_, err = exec.Execute(context.Background(), "list_tasks", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, taskchat.ErrScopeReleased)
	})
}

func TestAddTask(t *testing.T) {
	t.Parallel()

	t.Run("creates task", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "add_task", `{"title":"buy milk"}`)
		assert.False(t, res.IsError)
		assert.Equal(t, "Created task: 'buy milk' (ID: 1)", res.Text())

		calls := b.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, http.MethodPost, calls[0].Method)
		assert.Equal(t, "/api/u1/tasks", calls[0].Path)
		assert.Equal(t, "tok", calls[0].Credential)
		assert.Equal(t, map[string]string{"title": "buy milk"}, calls[0].Body)
	})

	t.Run("includes description when given", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		execute(t, bind(t, b.Client(), "u1", "tok"), "add_task", `{"title":"call mom","description":"Sunday"}`)
		assert.Equal(t, map[string]string{"title": "call mom", "description": "Sunday"}, b.Calls()[0].Body)
	})

	t.Run("every valid title appears with an id", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		exec := bind(t, b.Client(), "u1", "tok")
		for _, title := range []string{"a", "Buy milk", "日本語のタスク", strings.Repeat("x", 200)} {
			args, _ := json.Marshal(map[string]string{"title": title})
			res := execute(t, exec, "add_task", string(args))
			assert.Contains(t, res.Text(), title)
			assert.Regexp(t, `\(ID: \d+\)$`, res.Text())
		}
	})

	t.Run("missing id in response", func(t *testing.T) {
		t.Parallel()
		c := &mock.OperationClient{CallFn: func(context.Context, string, string, string, any) taskchat.OperationResult {
			return taskchat.Success(json.RawMessage(`{}`))
		}}
		res := execute(t, bind(t, c, "u1", "tok"), "add_task", `{"title":"x"}`)
		assert.Equal(t, "Created task: 'x' (ID: unknown)", res.Text())
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		c := &mock.OperationClient{CallFn: func(context.Context, string, string, string, any) taskchat.OperationResult {
			return taskchat.Failure(taskchat.MsgUnavailable)
		}}
		res := execute(t, bind(t, c, "u1", "tok"), "add_task", `{"title":"x"}`)
		assert.True(t, res.IsError)
		assert.Equal(t, "Error: Task service is temporarily unavailable. Please try again.", res.Text())
	})
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	seeded := func() *mock.TaskBackend {
		b := mock.NewTaskBackend()
		b.Seed("u1", "buy milk", false)
		b.Seed("u1", "pay rent", true)
		b.Seed("u1", "walk dog", false)
		b.Seed("u2", "someone else's", false)
		return b
	}

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, seeded().Client(), "u1", "tok"), "list_tasks", `{"status":"all"}`)
		assert.Equal(t, "- [pending] ID 3: walk dog\n- [done] ID 2: pay rent\n- [pending] ID 1: buy milk", res.Text())
	})

	t.Run("pending never includes completed", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, seeded().Client(), "u1", "tok"), "list_tasks", `{"status":"pending"}`)
		for _, line := range strings.Split(res.Text(), "\n") {
			assert.True(t, strings.HasPrefix(line, "- [pending]"), line)
		}
		assert.Len(t, strings.Split(res.Text(), "\n"), 2)
	})

	t.Run("completed never includes pending", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, seeded().Client(), "u1", "tok"), "list_tasks", `{"status":"completed"}`)
		assert.Equal(t, "- [done] ID 2: pay rent", res.Text())
	})

	t.Run("description appended", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		exec := bind(t, b.Client(), "u1", "tok")
		execute(t, exec, "add_task", `{"title":"call mom","description":"Sunday"}`)
		res := execute(t, exec, "list_tasks", `{}`)
		assert.Equal(t, "- [pending] ID 1: call mom - Sunday", res.Text())
	})

	t.Run("empty states", func(t *testing.T) {
		t.Parallel()
		exec := bind(t, mock.NewTaskBackend().Client(), "u1", "tok")
		assert.Equal(t, "You have no tasks yet. Would you like to add one?", execute(t, exec, "list_tasks", `{}`).Text())
		assert.Equal(t, "You have no pending tasks.", execute(t, exec, "list_tasks", `{"status":"pending"}`).Text())
		assert.Equal(t, "You haven't completed any tasks yet.", execute(t, exec, "list_tasks", `{"status":"completed"}`).Text())
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		c := &mock.OperationClient{CallFn: func(context.Context, string, string, string, any) taskchat.OperationResult {
			return taskchat.Failure(taskchat.MsgTimeout)
		}}
		res := execute(t, bind(t, c, "u1", "tok"), "list_tasks", `{}`)
		assert.Equal(t, "Error: Request timed out. Please try again.", res.Text())
	})
}

func TestCompleteTask(t *testing.T) {
	t.Parallel()

	t.Run("toggle twice restores state", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		id := b.Seed("u1", "buy milk", false)
		exec := bind(t, b.Client(), "u1", "tok")
		args := fmt.Sprintf(`{"task_id":%d}`, id)

		first := execute(t, exec, "complete_task", args)
		assert.Equal(t, "Task 'buy milk' (ID: 1) has been completed.", first.Text())
		second := execute(t, exec, "complete_task", args)
		assert.Equal(t, "Task 'buy milk' (ID: 1) has been reopened.", second.Text())

		list := execute(t, exec, "list_tasks", `{}`)
		assert.Equal(t, "- [pending] ID 1: buy milk", list.Text())
		assert.Equal(t, "/api/u1/tasks/1/complete", b.Calls()[0].Path)
		assert.Equal(t, http.MethodPatch, b.Calls()[0].Method)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, mock.NewTaskBackend().Client(), "u1", "tok"), "complete_task", `{"task_id":42}`)
		assert.True(t, res.IsError)
		assert.Equal(t, "Error: Task not found", res.Text())
	})
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	t.Run("deletes", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		b.Seed("u1", "buy milk", false)
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "delete_task", `{"task_id":1}`)
		assert.Equal(t, "Task (ID: 1) has been deleted.", res.Text())
		assert.Equal(t, http.MethodDelete, b.Calls()[0].Method)
		assert.Equal(t, "/api/u1/tasks/1", b.Calls()[0].Path)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, mock.NewTaskBackend().Client(), "u1", "tok"), "delete_task", `{"task_id":42}`)
		assert.Equal(t, "Error: Task not found", res.Text())
	})

	t.Run("other user's task", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		b.Seed("u2", "private", false)
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "delete_task", `{"task_id":1}`)
		assert.Equal(t, "Error: Task not found", res.Text())
	})
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	t.Run("updates title", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		b.Seed("u1", "buy milk", false)
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "update_task", `{"task_id":1,"title":"buy oat milk"}`)
		assert.Equal(t, "Task (ID: 1) has been updated. New title: 'buy oat milk'", res.Text())
		calls := b.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, http.MethodPut, calls[0].Method)
		assert.Equal(t, map[string]string{"title": "buy oat milk"}, calls[0].Body)
	})

	t.Run("description only keeps title", func(t *testing.T) {
		t.Parallel()
		b := mock.NewTaskBackend()
		b.Seed("u1", "buy milk", false)
		res := execute(t, bind(t, b.Client(), "u1", "tok"), "update_task", `{"task_id":1,"description":"2 liters"}`)
		assert.Equal(t, "Task (ID: 1) has been updated. New title: 'buy milk'", res.Text())
	})

	t.Run("nothing to update makes no call", func(t *testing.T) {
		t.Parallel()
		for _, args := range []string{`{"task_id":1}`, `{"task_id":1,"title":"","description":""}`} {
			b := mock.NewTaskBackend()
			b.Seed("u1", "buy milk", false)
			res := execute(t, bind(t, b.Client(), "u1", "tok"), "update_task", args)
			assert.Equal(t, "Please specify what to update (title or description).", res.Text())
			assert.Empty(t, b.Calls())
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		res := execute(t, bind(t, mock.NewTaskBackend().Client(), "u1", "tok"), "update_task", `{"task_id":42,"title":"x"}`)
		assert.Equal(t, "Error: Task not found", res.Text())
	})
}

func TestExecutor_ConcurrentIdentities(t *testing.T) {
	t.Parallel()
	b := mock.NewTaskBackend()
	reg, err := tools.New(b.Client())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			scope, err := taskchat.Bind(user, "tok-"+user)
			if !assert.NoError(t, err) {
				return
			}
			defer scope.Release()
			exec := reg.Bind(scope)
			for range 5 {
				_, err := exec.Execute(context.Background(), "add_task", json.RawMessage(`{"title":"t"}`))
				assert.NoError(t, err)
				_, err = exec.Execute(context.Background(), "list_tasks", json.RawMessage(`{}`))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	calls := b.Calls()
	assert.Len(t, calls, 20*5*2)
	for _, c := range calls {
		user := strings.Split(strings.TrimPrefix(c.Path, "/api/"), "/")[0]
		assert.Equal(t, "tok-"+user, c.Credential)
	}
}

func TestUndecodableSuccessPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool, args, want string
	}{
		{"complete_task", `{"task_id":3}`, "Task (ID: 3) has been toggled."},
		{"update_task", `{"task_id":3,"title":"new"}`, "Task (ID: 3) has been updated."},
		{"add_task", `{"title":"x"}`, "Created task: 'x' (ID: unknown)"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			t.Parallel()
			c := &mock.OperationClient{CallFn: func(context.Context, string, string, string, any) taskchat.OperationResult {
				return taskchat.Success(json.RawMessage(`{"task":"oops"}`))
			}}
			var logs bytes.Buffer
			reg, err := tools.New(c, tools.WithLogger(zerolog.New(&logs)))
			require.NoError(t, err)
			scope, err := taskchat.Bind("u1", "tok")
			require.NoError(t, err)
			t.Cleanup(scope.Release)

			res := execute(t, reg.Bind(scope), tt.tool, tt.args)
			assert.False(t, res.IsError)
			assert.Equal(t, tt.want, res.Text())
			assert.Contains(t, logs.String(), "undecodable task in backend response")
			assert.Contains(t, logs.String(), `"tool":"`+tt.tool+`"`)
		})
	}
}

func TestInvalidArgumentsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	reg, err := tools.New(mock.NewTaskBackend().Client(), tools.WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	scope, err := taskchat.Bind("u1", "tok")
	require.NoError(t, err)
	t.Cleanup(scope.Release)

	res := execute(t, reg.Bind(scope), "add_task", `{"title":"x","description":7}`)
	assert.Equal(t, "Error: invalid arguments for add_task (description). Please check the task details and try again.", res.Text())
	assert.Contains(t, logs.String(), "Invalid type")
}
