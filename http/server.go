// Package http exposes the chat endpoint: a JSON API that stores each turn
// of a user's conversation and answers it through a [taskchat.Assistant].
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/taskchat"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// CredentialCookie is the cookie carrying the user's credential.
const CredentialCookie = "auth_token"

const (
	maxBodyBytes      = 64 << 10
	readHeaderTimeout = 10 * time.Second
)

// Pinger reports storage connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Authenticator resolves the user a credential belongs to.
type Authenticator func(ctx context.Context, credential string) (userID string, err error)

// Server serves the chat API.
type Server struct {
	ln     net.Listener
	server *http.Server
	router *http.ServeMux

	assistant      taskchat.Assistant
	store          taskchat.ConversationStore
	pinger         Pinger
	authenticate   Authenticator
	allowedOrigins []string
	log            zerolog.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithPinger sets the storage checked by GET /health.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithAuthenticator verifies that the credential belongs to the user named
// in the path. Without one, any non-empty credential is accepted; only
// tests and trusted front proxies should run that way.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.authenticate = a }
}

// WithAllowedOrigins sets the origins allowed for CORS and WebSocket
// handshakes, for example "http://localhost:3000".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// NewServer creates a Server answering chats with assistant and persisting
// them in store.
func NewServer(assistant taskchat.Assistant, store taskchat.ConversationStore, opts ...Option) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		assistant: assistant,
		store:     store,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /api/{user_id}/chat", s.authorized(msgForbiddenChat, s.handleChat))
	s.router.HandleFunc("GET /api/{user_id}/chat/ws", s.authorized(msgForbiddenChat, s.handleChatSocket))
	s.router.HandleFunc("GET /api/{user_id}/conversations", s.authorized(msgForbiddenConvs, s.handleConversations))
	s.router.HandleFunc("GET /api/{user_id}/conversations/{conversation_id}/messages", s.authorized(msgForbiddenConvs, s.handleMessages))

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.cors(h)
	h = s.recoverPanics(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	return s.requestID(h)
}

// Open starts listening on addr and serves in the background.
func (s *Server) Open(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http: listen: %w", err)
	}
	s.ln = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server stopped")
		}
	}()
	return nil
}

// Addr returns the listening address, or "" before Open.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close gracefully shuts the server down, waiting for in-flight requests
// until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	return nil
}

// requestID tags each request with an id, echoed in X-Request-Id and
// attached to the request logger.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		l := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				zerolog.Ctx(r.Context()).Error().Interface("panic", v).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.allowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// credential returns the auth_token cookie, or a bearer token.
func credential(r *http.Request) string {
	if c, err := r.Cookie(CredentialCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

type authorizedHandler func(w http.ResponseWriter, r *http.Request, userID, credential string)

// authorized requires a credential and, with an Authenticator, that it
// belongs to the path user. forbidden is the message for a mismatch.
func (s *Server) authorized(forbidden string, h authorizedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		cred := credential(r)
		if cred == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, msgUnauthorized)
			return
		}
		if s.authenticate != nil {
			owner, err := s.authenticate(r.Context(), cred)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("credential rejected")
				msg := msgUnauthorized
				if errors.Is(err, taskchat.ErrCredentialExpired) {
					msg = msgExpired
				}
				writeError(w, http.StatusUnauthorized, codeUnauthorized, msg)
				return
			}
			if owner != userID {
				zerolog.Ctx(r.Context()).Warn().Str("path_user_id", userID).Str("token_user_id", owner).Msg("cross-user access refused")
				writeError(w, http.StatusForbidden, codeForbidden, forbidden)
				return
			}
		}
		l := zerolog.Ctx(r.Context()).With().Str("user_id", userID).Logger()
		h(w, r.WithContext(l.WithContext(r.Context())), userID, cred)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "connected"
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("database ping failed")
			status = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": status})
}
