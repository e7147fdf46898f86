package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/askdocs/askdocs/engine/core"
)

// memoryStore is a flat-scan index used by tests and single-node dev runs.
// It implements the same atomic-upsert contract as the postgres store: a
// whole Upsert call applies under one lock acquisition, so readers never see
// a partially indexed document.
type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]Record
}

// NewMemoryStore builds an in-memory vector index with the given dimension.
func NewMemoryStore(dimension int) (Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("memory: dimension must be greater than zero")
	}
	return &memoryStore{dimension: dimension, records: make(map[string]Record)}, nil
}

func (s *memoryStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != s.dimension {
			return core.NewError(
				fmt.Errorf("record %q dimension mismatch (got %d want %d)",
					records[i].ID, len(records[i].Embedding), s.dimension),
				core.CodeIndexCorruption,
				nil,
			)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i]
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, core.NewError(
			fmt.Errorf("query dimension mismatch (got %d want %d)", len(query), s.dimension),
			core.CodeIndexCorruption,
			nil,
		)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		score := cosineSimilarity(rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			Ordinal:    rec.Ordinal,
			Text:       rec.Text,
			Score:      score,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *memoryStore) DeleteDocument(_ context.Context, docID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.DocumentID == docID {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
