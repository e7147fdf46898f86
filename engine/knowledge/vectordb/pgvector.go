package vectordb

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Config captures connection details for the postgres-backed index.
type Config struct {
	Pool      *pgxpool.Pool
	Table     string
	Dimension int
	// EnsureIndex creates an ivfflat cosine index alongside the table.
	EnsureIndex bool
}

type pgStore struct {
	pool       *pgxpool.Pool
	tableIdent string
	dimension  int
}

// NewPGStore builds the postgres vector index, creating the schema when it
// does not exist. A dimension change against an existing table is detected
// here and reported as index corruption rather than silently migrated.
func NewPGStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil || cfg.Pool == nil {
		return nil, errors.New("pgvector: pool is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("pgvector: dimension must be greater than zero")
	}
	table := cfg.Table
	if table == "" {
		table = "document_chunks"
	}
	store := &pgStore{
		pool:       cfg.Pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		dimension:  cfg.Dimension,
	}
	if err := store.ensureSchema(ctx, table, cfg.EnsureIndex); err != nil {
		return nil, err
	}
	return store, nil
}

func (p *pgStore) ensureSchema(ctx context.Context, table string, ensureIndex bool) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return core.NewError(fmt.Errorf("pgvector: acquire connection: %w", err), core.CodePersistenceFailure, nil)
	}
	defer conn.Release()
	if _, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return core.NewError(fmt.Errorf("pgvector: enable extension: %w", err), core.CodePersistenceFailure, nil)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		ordinal INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, p.tableIdent, p.dimension)
	if _, err = conn.Exec(ctx, createTable); err != nil {
		return core.NewError(fmt.Errorf("pgvector: create table: %w", err), core.CodePersistenceFailure, nil)
	}
	if err := p.checkDimension(ctx, conn, table); err != nil {
		return err
	}
	docIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (document_id)",
		pgx.Identifier{table + "_document_id_idx"}.Sanitize(),
		p.tableIdent,
	)
	if _, err = conn.Exec(ctx, docIndex); err != nil {
		return core.NewError(fmt.Errorf("pgvector: create document index: %w", err), core.CodePersistenceFailure, nil)
	}
	if ensureIndex {
		createIndex := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops)",
			pgx.Identifier{table + "_embedding_idx"}.Sanitize(),
			p.tableIdent,
		)
		if _, err = conn.Exec(ctx, createIndex); err != nil {
			return core.NewError(fmt.Errorf("pgvector: create embedding index: %w", err), core.CodePersistenceFailure, nil)
		}
	}
	return nil
}

// checkDimension compares the declared dimension against an existing table's
// vector column. A mismatch means the embedding model changed across
// restarts; the index requires explicit reindexing in that case.
func (p *pgStore) checkDimension(ctx context.Context, conn *pgxpool.Conn, table string) error {
	var existing int
	err := conn.QueryRow(ctx,
		`SELECT coalesce(atttypmod, -1) FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		table,
	).Scan(&existing)
	if err != nil {
		return core.NewError(fmt.Errorf("pgvector: inspect embedding column: %w", err), core.CodePersistenceFailure, nil)
	}
	if existing > 0 && existing != p.dimension {
		return core.NewError(
			fmt.Errorf("index dimension is %d but embedder declares %d; reindex required", existing, p.dimension),
			core.CodeIndexCorruption,
			map[string]any{"table": table},
		)
	}
	return nil
}

// Upsert writes all records inside one transaction so queries see either the
// pre- or post-upsert state of a document, never a partial one.
func (p *pgStore) Upsert(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != p.dimension {
			return core.NewError(
				fmt.Errorf("record %q dimension mismatch (got %d want %d)",
					records[i].ID, len(records[i].Embedding), p.dimension),
				core.CodeIndexCorruption,
				nil,
			)
		}
	}
	tx, txErr := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if txErr != nil {
		return core.NewError(fmt.Errorf("pgvector: begin tx: %w", txErr), core.CodePersistenceFailure, nil)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = core.NewError(fmt.Errorf("pgvector: commit: %w", commitErr), core.CodePersistenceFailure, nil)
		}
	}()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, document_id, ordinal, content, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE SET
    document_id = excluded.document_id,
    ordinal = excluded.ordinal,
    content = excluded.content,
    embedding = excluded.embedding,
    updated_at = excluded.updated_at`, p.tableIdent)
	for i := range records {
		rec := records[i]
		vector := pgvector.NewVector(rec.Embedding)
		if _, execErr := tx.Exec(ctx, stmt, rec.ID, rec.DocumentID, rec.Ordinal, rec.Text, vector); execErr != nil {
			err = core.NewError(fmt.Errorf("pgvector: upsert %q: %w", rec.ID, execErr), core.CodePersistenceFailure, nil)
			return err
		}
	}
	return nil
}

func (p *pgStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != p.dimension {
		return nil, core.NewError(
			fmt.Errorf("query dimension mismatch (got %d want %d)", len(query), p.dimension),
			core.CodeIndexCorruption,
			nil,
		)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	stmt := fmt.Sprintf(`SELECT id, document_id, ordinal, content, 1 - (embedding <=> $1) AS score
FROM %s
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1 ASC
LIMIT $3`, p.tableIdent)
	rows, err := p.pool.Query(ctx, stmt, pgvector.NewVector(query), opts.MinScore, topK)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("pgvector: search: %w", err), core.CodePersistenceFailure, nil)
	}
	defer rows.Close()
	results := make([]Match, 0, topK)
	for rows.Next() {
		var match Match
		var docID string
		if err := rows.Scan(&match.ID, &docID, &match.Ordinal, &match.Text, &match.Score); err != nil {
			return nil, core.NewError(fmt.Errorf("pgvector: scan: %w", err), core.CodePersistenceFailure, nil)
		}
		match.DocumentID = core.ID(docID)
		results = append(results, match)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError(fmt.Errorf("pgvector: search rows: %w", err), core.CodePersistenceFailure, nil)
	}
	return results, nil
}

func (p *pgStore) DeleteDocument(ctx context.Context, docID core.ID) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", p.tableIdent)
	if _, err := p.pool.Exec(ctx, stmt, docID); err != nil {
		return core.NewError(fmt.Errorf("pgvector: delete document: %w", err), core.CodePersistenceFailure, nil)
	}
	return nil
}

func (p *pgStore) Close(_ context.Context) error {
	// The pool is shared with the credential store and document catalog; the
	// owner closes it.
	return nil
}
