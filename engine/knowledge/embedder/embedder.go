package embedder

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations must
// return vectors of exactly Dimension() elements or fail.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
