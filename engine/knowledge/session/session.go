package session

import (
	"context"
	"errors"
	"time"

	"github.com/askdocs/askdocs/engine/core"
)

// MessageRole marks which side of the conversation produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Session is one conversation thread owned by a single API key.
type Session struct {
	ID        core.ID   `db:"id" json:"id"`
	KeyID     core.ID   `db:"key_id" json:"key_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is one recorded turn within a session.
type Message struct {
	ID        core.ID     `db:"id" json:"id"`
	SessionID core.ID     `db:"session_id" json:"session_id"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// ErrNotFound is returned when a session ID has no record visible to the
// calling key.
var ErrNotFound = errors.New("session not found")

// Store persists conversation threads. Every lookup is scoped by the owning
// key ID, so one key can never read or delete another key's sessions.
// AddMessage bumps the parent session's updated_at so List stays ordered by
// recent activity.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id, keyID core.ID) (*Session, error)
	List(ctx context.Context, keyID core.ID) ([]Session, error)
	Delete(ctx context.Context, id, keyID core.ID) error
	AddMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, sessionID core.ID) ([]Message, error)
}
