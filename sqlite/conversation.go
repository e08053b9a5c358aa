package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/json"
	"github.com/google/uuid"
)

// Interface compliance check.
var _ taskchat.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements [taskchat.ConversationStore] on a [DB].
type ConversationStore struct {
	db *DB
}

// NewConversationStore returns a store backed by db.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

const conversationColumns = `id, user_id, created_at, updated_at`

// EnsureConversation returns the user's most recently updated conversation,
// creating one inside the same transaction when none exists.
func (s *ConversationStore) EnsureConversation(ctx context.Context, userID string) (taskchat.Conversation, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return taskchat.Conversation{}, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := scanConversation(tx.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC LIMIT 1`, userID))
	switch {
	case err == nil:
		return c, nil
	case !errors.Is(err, sql.ErrNoRows):
		return taskchat.Conversation{}, err
	}

	now := s.db.timestamp()
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, userID, now, now); err != nil {
		return taskchat.Conversation{}, fmt.Errorf("sqlite: insert conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return taskchat.Conversation{}, fmt.Errorf("sqlite: commit: %w", err)
	}
	created, _ := parseTime(now)
	return taskchat.Conversation{ID: id, UserID: userID, CreatedAt: created, UpdatedAt: created}, nil
}

func (s *ConversationStore) FindConversation(ctx context.Context, userID, id string) (taskchat.Conversation, error) {
	c, err := scanConversation(s.db.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return taskchat.Conversation{}, fmt.Errorf("sqlite: %s: %w", id, taskchat.ErrConversationNotFound)
	}
	return c, err
}

func (s *ConversationStore) ListConversations(ctx context.Context, userID string) ([]taskchat.Conversation, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()

	convs := []taskchat.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	return convs, nil
}

// ListMessages returns the messages of a conversation in creation order.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string) ([]taskchat.StoredMessage, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tool_calls, created_at FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()

	msgs := []taskchat.StoredMessage{}
	for rows.Next() {
		var (
			m         taskchat.StoredMessage
			role      string
			toolCalls sql.NullString
			created   string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &toolCalls, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.Role = taskchat.Role(role)
		if toolCalls.Valid {
			if m.ToolCalls, err = json.UnmarshalToolCalls([]byte(toolCalls.String)); err != nil {
				return nil, fmt.Errorf("sqlite: message %s: %w", m.ID, err)
			}
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage stores m, assigning its id and creation time.
func (s *ConversationStore) AppendMessage(ctx context.Context, m taskchat.StoredMessage) (taskchat.StoredMessage, error) {
	if !m.Role.Valid() {
		return taskchat.StoredMessage{}, fmt.Errorf("sqlite: role %q: %w", m.Role, taskchat.ErrValidation)
	}
	raw, err := json.MarshalToolCalls(m.ToolCalls)
	if err != nil {
		return taskchat.StoredMessage{}, fmt.Errorf("sqlite: %w", err)
	}
	var toolCalls sql.NullString
	if raw != nil {
		toolCalls = sql.NullString{String: string(raw), Valid: true}
	}

	m.ID = uuid.NewString()
	now := s.db.timestamp()
	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, tool_calls, created_at)
		 SELECT ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM conversations WHERE id = ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, toolCalls, now, m.ConversationID)
	if err != nil {
		return taskchat.StoredMessage{}, fmt.Errorf("sqlite: insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return taskchat.StoredMessage{}, fmt.Errorf("sqlite: %s: %w", m.ConversationID, taskchat.ErrConversationNotFound)
	}
	m.CreatedAt, _ = parseTime(now)
	return m, nil
}

// TouchConversation bumps the conversation's updated_at.
func (s *ConversationStore) TouchConversation(ctx context.Context, id string) error {
	res, err := s.db.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, s.db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("sqlite: touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: %s: %w", id, taskchat.ErrConversationNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (taskchat.Conversation, error) {
	var (
		c                taskchat.Conversation
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.UserID, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return taskchat.Conversation{}, err
		}
		return taskchat.Conversation{}, fmt.Errorf("sqlite: scan conversation: %w", err)
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return taskchat.Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return taskchat.Conversation{}, err
	}
	return c, nil
}
