package document

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var documentColumns = []string{
	"id", "filename", "content_type", "byte_size",
	"chunk_count", "status", "failure_reason", "created_at",
}

// DBInterface defines the minimal interface needed by the catalog.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements the document catalog on PostgreSQL.
type PGStore struct {
	db DBInterface
}

// NewPGStore creates a postgres-backed document catalog.
func NewPGStore(db DBInterface) Store {
	return &PGStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func EnsureSchema(ctx context.Context, db DBInterface) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		byte_size BIGINT NOT NULL,
		chunk_count INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`
	if _, err := db.Exec(ctx, schema); err != nil {
		return core.NewError(fmt.Errorf("creating documents table: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (s *PGStore) Create(ctx context.Context, doc *Document) error {
	query, args, err := squirrel.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.Filename, doc.ContentType, doc.ByteSize,
			doc.ChunkCount, doc.Status, doc.FailureReason, doc.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return core.NewError(fmt.Errorf("inserting document: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (s *PGStore) SetStatus(ctx context.Context, id core.ID, status Status, failureReason string) error {
	query, args, err := squirrel.Update("documents").
		Set("status", status).
		Set("failure_reason", failureReason).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return core.NewError(fmt.Errorf("updating document status: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	return nil
}

func (s *PGStore) SetIndexed(ctx context.Context, id core.ID, chunkCount int) error {
	query, args, err := squirrel.Update("documents").
		Set("status", StatusIndexed).
		Set("chunk_count", chunkCount).
		Set("failure_reason", "").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return core.NewError(fmt.Errorf("marking document indexed: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id core.ID) (*Document, error) {
	query, args, err := squirrel.Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var doc Document
	if err := pgxscan.Get(ctx, s.db, &doc, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
		}
		return nil, core.NewError(fmt.Errorf("selecting document: %w", err), core.CodePersistenceFailure, nil)
	}
	return &doc, nil
}

func (s *PGStore) List(ctx context.Context) ([]Document, error) {
	query, args, err := squirrel.Select(documentColumns...).
		From("documents").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var docs []Document
	if err := pgxscan.Select(ctx, s.db, &docs, query, args...); err != nil {
		return nil, core.NewError(fmt.Errorf("listing documents: %w", err), core.CodePersistenceFailure, nil)
	}
	return docs, nil
}

func (s *PGStore) Delete(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return core.NewError(fmt.Errorf("deleting document: %w", err), core.CodePersistenceFailure, nil)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	return nil
}
