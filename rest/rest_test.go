package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Call(t *testing.T) {
	t.Parallel()

	t.Run("sends method path body and credential cookie", func(t *testing.T) {
		t.Parallel()
		var gotMethod, gotPath, gotCookie, gotCT string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotCT = r.Header.Get("Content-Type")
			if c, err := r.Cookie("auth_token"); err == nil {
				gotCookie = c.Value
			}
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"success":true,"data":{"task":{"id":5,"title":"Buy milk"}},"error":null}`)
		}))
		defer srv.Close()

		c := rest.New(rest.WithBaseURL(srv.URL + "/"))
		res := c.Call(context.Background(), http.MethodPost, "/api/u1/tasks", "tok", map[string]any{"title": "Buy milk"})

		require.True(t, res.OK())
		assert.JSONEq(t, `{"task":{"id":5,"title":"Buy milk"}}`, string(res.Payload()))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/api/u1/tasks", gotPath)
		assert.Equal(t, "tok", gotCookie)
		assert.Equal(t, "application/json", gotCT)
		assert.Equal(t, "Buy milk", gotBody["title"])
	})

	t.Run("no body no cookie", func(t *testing.T) {
		t.Parallel()
		var hadCookie bool
		var bodyLen int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := r.Cookie("auth_token")
			hadCookie = err == nil
			b, _ := io.ReadAll(r.Body)
			bodyLen = len(b)
			_, _ = io.WriteString(w, `{"success":true,"data":{"tasks":[]}}`)
		}))
		defer srv.Close()

		res := rest.New(rest.WithBaseURL(srv.URL)).Call(context.Background(), http.MethodGet, "/api/u1/tasks", "", nil)
		require.True(t, res.OK())
		assert.False(t, hadCookie)
		assert.Zero(t, bodyLen)
	})

	t.Run("backend domain error is decoded regardless of status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"data":null,"error":{"code":"TASK_NOT_FOUND","message":"Task not found"}}`)
		}))
		defer srv.Close()

		res := rest.New(rest.WithBaseURL(srv.URL)).Call(context.Background(), http.MethodDelete, "/api/u1/tasks/9", "tok", nil)
		assert.False(t, res.OK())
		assert.Equal(t, "Task not found", res.Message())
	})

	t.Run("failure without message", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false}`)
		}))
		defer srv.Close()

		res := rest.New(rest.WithBaseURL(srv.URL)).Call(context.Background(), http.MethodGet, "/api/u1/tasks", "tok", nil)
		assert.Equal(t, taskchat.MsgUnknown, res.Message())
	})

	t.Run("non-json body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}))
		defer srv.Close()

		res := rest.New(rest.WithBaseURL(srv.URL)).Call(context.Background(), http.MethodGet, "/api/u1/tasks", "tok", nil)
		assert.False(t, res.OK())
		assert.Equal(t, taskchat.MsgUnexpected, res.Message())
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := rest.New(rest.WithBaseURL(srv.URL), rest.WithTimeout(50*time.Millisecond))
		res := c.Call(context.Background(), http.MethodGet, "/api/u1/tasks", "tok", nil)
		assert.False(t, res.OK())
		assert.Equal(t, taskchat.MsgTimeout, res.Message())
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		res := rest.New(rest.WithBaseURL("http://"+addr)).Call(context.Background(), http.MethodGet, "/api/u1/tasks", "tok", nil)
		assert.False(t, res.OK())
		assert.Equal(t, taskchat.MsgUnavailable, res.Message())
	})

	t.Run("unmarshalable body", func(t *testing.T) {
		t.Parallel()
		res := rest.New().Call(context.Background(), http.MethodPost, "/api/u1/tasks", "tok", map[string]any{"bad": make(chan int)})
		assert.Equal(t, taskchat.MsgUnexpected, res.Message())
	})
}
