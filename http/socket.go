package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/fwojciec/taskchat"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// frame is one server-to-client message of the streaming chat socket.
type frame struct {
	Type    string        `json:"type"`
	Delta   string        `json:"delta,omitempty"`
	ID      string        `json:"id,omitempty"`
	Tool    string        `json:"tool,omitempty"`
	Content string        `json:"content,omitempty"`
	IsError bool          `json:"is_error,omitempty"`
	Data    *chatResponse `json:"data,omitempty"`
	Error   *errorDetail  `json:"error,omitempty"`
}

const (
	frameTextDelta  = "text_delta"
	frameToolCall   = "tool_call"
	frameToolResult = "tool_result"
	frameDone       = "done"
	frameError      = "error"
)

// handleChatSocket serves chat turns over a WebSocket. Each client message
// has the POST /chat body; the server streams text deltas, tool calls and
// tool results, then a done frame carrying the same data as POST /chat.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request, userID, credential string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	log := zerolog.Ctx(ctx)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if s.send(ctx, conn, frame{Type: frameError, Error: &errorDetail{Code: codeInvalidRequest, Message: msgInvalidRequest}}) != nil {
				return
			}
			continue
		}

		onEvent := func(evt taskchat.Event) {
			if f, ok := eventFrame(evt); ok {
				if err := s.send(ctx, conn, f); err != nil {
					log.Debug().Err(err).Msg("websocket write")
				}
			}
		}
		resp, cerr := s.converse(context.WithoutCancel(ctx), userID, credential, req, onEvent)
		out := frame{Type: frameDone, Data: &resp}
		if cerr != nil {
			out = frame{Type: frameError, Error: &errorDetail{Code: cerr.code, Message: cerr.message}}
		}
		if err := s.send(ctx, conn, out); err != nil {
			return
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func eventFrame(evt taskchat.Event) (frame, bool) {
	switch e := evt.(type) {
	case taskchat.EventTextDelta:
		return frame{Type: frameTextDelta, Delta: e.Delta}, true
	case taskchat.EventToolCallBegin:
		return frame{Type: frameToolCall, ID: e.ID, Tool: e.Name}, true
	case taskchat.EventToolResult:
		return frame{Type: frameToolResult, ID: e.ID, Tool: e.ToolName, Content: e.Content, IsError: e.IsError}, true
	}
	return frame{}, false
}

// originPatterns converts allowed origins to the host patterns the
// WebSocket handshake matches against.
func (s *Server) originPatterns() []string {
	patterns := make([]string, 0, len(s.allowedOrigins))
	for _, o := range s.allowedOrigins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
