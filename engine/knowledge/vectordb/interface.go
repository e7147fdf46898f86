package vectordb

import (
	"context"

	"github.com/askdocs/askdocs/engine/core"
)

// Provider enumerates supported vector index backends.
type Provider string

const (
	ProviderPGVector Provider = "pgvector"
	ProviderMemory   Provider = "memory"
)

// Record is a chunk persisted to the vector index. Embeddings must match the
// index dimension exactly.
type Record struct {
	ID         string
	DocumentID core.ID
	Ordinal    int
	Text       string
	Embedding  []float32
}

// SearchOptions controls similarity search execution.
type SearchOptions struct {
	TopK     int
	MinScore float64
}

// Match captures a similarity search result. Score is cosine similarity.
type Match struct {
	ID         string
	DocumentID core.ID
	Ordinal    int
	Text       string
	Score      float64
}

// Store exposes the vector index contract. Upsert applies all records of a
// call atomically: a concurrent Search sees either none or all of them.
// Searching an empty index returns an empty result, never an error.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	DeleteDocument(ctx context.Context, docID core.ID) error
	Close(ctx context.Context) error
}

const defaultTopK = 6
