package session

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var sessionColumns = []string{"id", "key_id", "title", "created_at", "updated_at"}

var messageColumns = []string{"id", "session_id", "role", "content", "created_at"}

// DBInterface defines the minimal interface needed by the session store.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements the session store on PostgreSQL.
type PGStore struct {
	db DBInterface
}

// NewPGStore creates a postgres-backed session store.
func NewPGStore(db DBInterface) Store {
	return &PGStore{db: db}
}

// EnsureSchema creates the session tables if they do not exist. Messages
// cascade on session deletion so no orphaned transcript rows survive.
func EnsureSchema(ctx context.Context, db DBInterface) error {
	const sessions = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		key_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`
	if _, err := db.Exec(ctx, sessions); err != nil {
		return core.NewError(fmt.Errorf("creating chat_sessions table: %w", err), core.CodePersistenceFailure, nil)
	}
	const messages = `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`
	if _, err := db.Exec(ctx, messages); err != nil {
		return core.NewError(fmt.Errorf("creating chat_messages table: %w", err), core.CodePersistenceFailure, nil)
	}
	const indexes = `
	CREATE INDEX IF NOT EXISTS chat_sessions_key_id_idx ON chat_sessions (key_id);
	CREATE INDEX IF NOT EXISTS chat_messages_session_id_idx ON chat_messages (session_id)`
	if _, err := db.Exec(ctx, indexes); err != nil {
		return core.NewError(fmt.Errorf("creating session indexes: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	query, args, err := squirrel.Insert("chat_sessions").
		Columns(sessionColumns...).
		Values(sess.ID, sess.KeyID, sess.Title, sess.CreatedAt, sess.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return core.NewError(fmt.Errorf("inserting session: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id, keyID core.ID) (*Session, error) {
	query, args, err := squirrel.Select(sessionColumns...).
		From("chat_sessions").
		Where(squirrel.Eq{"id": id, "key_id": keyID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var sess Session
	if err := pgxscan.Get(ctx, s.db, &sess, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"session_id": id})
		}
		return nil, core.NewError(fmt.Errorf("selecting session: %w", err), core.CodePersistenceFailure, nil)
	}
	return &sess, nil
}

func (s *PGStore) List(ctx context.Context, keyID core.ID) ([]Session, error) {
	query, args, err := squirrel.Select(sessionColumns...).
		From("chat_sessions").
		Where(squirrel.Eq{"key_id": keyID}).
		OrderBy("updated_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var sessions []Session
	if err := pgxscan.Select(ctx, s.db, &sessions, query, args...); err != nil {
		return nil, core.NewError(fmt.Errorf("listing sessions: %w", err), core.CodePersistenceFailure, nil)
	}
	return sessions, nil
}

func (s *PGStore) Delete(ctx context.Context, id, keyID core.ID) error {
	query, args, err := squirrel.Delete("chat_sessions").
		Where(squirrel.Eq{"id": id, "key_id": keyID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return core.NewError(fmt.Errorf("deleting session: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"session_id": id})
	}
	return nil
}

func (s *PGStore) AddMessage(ctx context.Context, msg *Message) error {
	query, args, err := squirrel.Insert("chat_messages").
		Columns(messageColumns...).
		Values(msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return core.NewError(fmt.Errorf("inserting message: %w", err), core.CodePersistenceFailure, nil)
	}
	touch, args, err := squirrel.Update("chat_sessions").
		Set("updated_at", msg.CreatedAt).
		Where(squirrel.Eq{"id": msg.SessionID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if _, err := s.db.Exec(ctx, touch, args...); err != nil {
		return core.NewError(fmt.Errorf("touching session: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (s *PGStore) ListMessages(ctx context.Context, sessionID core.ID) ([]Message, error) {
	query, args, err := squirrel.Select(messageColumns...).
		From("chat_messages").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var messages []Message
	if err := pgxscan.Select(ctx, s.db, &messages, query, args...); err != nil {
		return nil, core.NewError(fmt.Errorf("listing messages: %w", err), core.CodePersistenceFailure, nil)
	}
	return messages, nil
}
