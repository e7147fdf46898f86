package document

import (
	"context"
	"sort"
	"sync"

	"github.com/askdocs/askdocs/engine/core"
)

// MemoryStore is an in-memory catalog for tests and single-node dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[core.ID]Document
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[core.ID]Document)}
}

func (s *MemoryStore) Create(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id core.ID, status Status, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	doc.Status = status
	doc.FailureReason = failureReason
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) SetIndexed(_ context.Context, id core.ID, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	doc.Status = StatusIndexed
	doc.ChunkCount = chunkCount
	doc.FailureReason = ""
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id core.ID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	return &doc, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) Delete(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"document_id": id})
	}
	delete(s.docs, id)
	return nil
}
