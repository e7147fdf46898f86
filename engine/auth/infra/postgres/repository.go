package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var keyColumns = []string{"id", "hash", "fingerprint", "prefix", "role", "label", "active", "created_at"}

// Repository implements the auth repository interface using PostgreSQL.
type Repository struct {
	db DBInterface
}

// DBInterface defines the minimal interface needed by the repository.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepository creates a new auth repository.
func NewRepository(db DBInterface) uc.Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the api_keys table if it does not exist. The partial
// unique index allows at most one superadmin row; bootstrap is the only path
// that inserts one, so concurrent bootstraps collide on the index instead of
// both inserting under READ COMMITTED.
func EnsureSchema(ctx context.Context, db DBInterface) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		hash BYTEA NOT NULL,
		fingerprint BYTEA NOT NULL UNIQUE,
		prefix TEXT NOT NULL,
		role TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`
	if _, err := db.Exec(ctx, schema); err != nil {
		return core.NewError(fmt.Errorf("creating api_keys table: %w", err), core.CodePersistenceFailure, nil)
	}
	const bootstrapIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS api_keys_one_superadmin
	ON api_keys (role) WHERE role = 'superadmin'`
	if _, err := db.Exec(ctx, bootstrapIndex); err != nil {
		return core.NewError(fmt.Errorf("creating bootstrap index: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

// CreateKey persists a new API key record.
func (r *Repository) CreateKey(ctx context.Context, key *model.APIKey) error {
	query, args, err := squirrel.Insert("api_keys").
		Columns(keyColumns...).
		Values(key.ID, key.Hash, key.Fingerprint, key.Prefix, key.Role, key.Label, key.Active, key.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return core.NewError(fmt.Errorf("inserting api key: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

// CreateInitialKeyIfNone atomically creates the bootstrap key if no key
// exists. The INSERT...WHERE NOT EXISTS handles the sequential case; two
// racers whose NOT EXISTS both pass under READ COMMITTED then collide on the
// api_keys_one_superadmin index, and the loser reports the store as already
// bootstrapped.
func (r *Repository) CreateInitialKeyIfNone(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, hash, fingerprint, prefix, role, label, active, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (SELECT 1 FROM api_keys)
	`
	tag, err := r.db.Exec(ctx, query,
		key.ID, key.Hash, key.Fingerprint, key.Prefix, key.Role, key.Label, key.Active, key.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return core.NewError(fmt.Errorf("credential store already bootstrapped"), core.CodeAlreadyBootstrapped, nil)
		}
		return core.NewError(fmt.Errorf("creating initial key: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(fmt.Errorf("credential store already bootstrapped"), core.CodeAlreadyBootstrapped, nil)
	}
	return nil
}

// GetKeyByFingerprint retrieves a key by its SHA-256 fingerprint.
func (r *Repository) GetKeyByFingerprint(ctx context.Context, fingerprint []byte) (*model.APIKey, error) {
	query, args, err := squirrel.Select(keyColumns...).
		From("api_keys").
		Where(squirrel.Eq{"fingerprint": fingerprint}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var key model.APIKey
	if err := pgxscan.Get(ctx, r.db, &key, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, uc.ErrKeyNotFound
		}
		return nil, core.NewError(fmt.Errorf("scanning api key: %w", err), core.CodePersistenceFailure, nil)
	}
	return &key, nil
}

// GetKeyByID retrieves a key by identifier.
func (r *Repository) GetKeyByID(ctx context.Context, id core.ID) (*model.APIKey, error) {
	query, args, err := squirrel.Select(keyColumns...).
		From("api_keys").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var key model.APIKey
	if err := pgxscan.Get(ctx, r.db, &key, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, uc.ErrKeyNotFound
		}
		return nil, core.NewError(fmt.Errorf("scanning api key: %w", err), core.CodePersistenceFailure, nil)
	}
	return &key, nil
}

// ListKeys retrieves all keys, newest first.
func (r *Repository) ListKeys(ctx context.Context) ([]*model.APIKey, error) {
	query, args, err := squirrel.Select(keyColumns...).
		From("api_keys").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var keys []*model.APIKey
	if err := pgxscan.Select(ctx, r.db, &keys, query, args...); err != nil {
		return nil, core.NewError(fmt.Errorf("scanning api keys: %w", err), core.CodePersistenceFailure, nil)
	}
	return keys, nil
}

// RevokeKey flips the active flag for a key.
func (r *Repository) RevokeKey(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Update("api_keys").
		Set("active", false).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return core.NewError(fmt.Errorf("revoking api key: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return uc.ErrKeyNotFound
	}
	return nil
}
