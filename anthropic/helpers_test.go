package anthropic_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/anthropic"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	event string
	data  string
}

func sseHandler(events ...sseEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.event, evt.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

const messageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1,"cache_read_input_tokens":4,"cache_creation_input_tokens":null}}}`

func endTurn(reason string, outputTokens int) []sseEvent {
	return []sseEvent{
		{"message_delta", fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":%q,"stop_sequence":null},"usage":{"output_tokens":%d}}`, reason, outputTokens)},
		{"message_stop", `{"type":"message_stop"}`},
	}
}

func openStream(t *testing.T, h http.Handler) taskchat.Stream {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL)).Stream(context.Background(), taskchat.Request{
		Messages: []taskchat.Message{taskchat.UserMessage{Content: []taskchat.ContentBlock{taskchat.TextBlock{Text: "hi"}}}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func drain(t *testing.T, s taskchat.Stream) ([]taskchat.Event, error) {
	t.Helper()
	var events []taskchat.Event
	for {
		evt, err := s.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, evt)
	}
}
