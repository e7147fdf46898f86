package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge/chunk"
	"github.com/askdocs/askdocs/engine/knowledge/document"
	"github.com/askdocs/askdocs/engine/knowledge/embedder"
	"github.com/askdocs/askdocs/engine/knowledge/vectordb"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	providerMaxRetries   = 2
	providerRetryBackoff = 200 * time.Millisecond
)

// Pipeline drives one document through chunk, embed and index stages. Each
// stage transition is persisted to the catalog so progress survives
// observation mid-flight. Indexing is all-or-none per document: on any
// failure the vector index holds no chunk of the document.
type Pipeline struct {
	splitter *chunk.Splitter
	embedder embedder.Embedder
	store    vectordb.Store
	catalog  document.Store
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(
	splitter *chunk.Splitter,
	emb embedder.Embedder,
	store vectordb.Store,
	catalog document.Store,
) *Pipeline {
	return &Pipeline{splitter: splitter, embedder: emb, store: store, catalog: catalog}
}

// Run ingests the given text for an already cataloged document and returns
// the number of chunks indexed. The document must be in the received state.
func (p *Pipeline) Run(ctx context.Context, docID core.ID, text string) (int, error) {
	chunks, err := p.splitter.Split(docID, text)
	if err != nil {
		return 0, p.fail(ctx, docID, "chunk", err)
	}
	if err := p.catalog.SetStatus(ctx, docID, document.StatusChunked, ""); err != nil {
		return 0, err
	}

	if err := p.catalog.SetStatus(ctx, docID, document.StatusEmbedding, ""); err != nil {
		return 0, err
	}
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return 0, p.fail(ctx, docID, "embed", err)
	}

	records := make([]vectordb.Record, len(chunks))
	for i := range chunks {
		records[i] = vectordb.Record{
			ID:         chunks[i].ID,
			DocumentID: chunks[i].DocumentID,
			Ordinal:    chunks[i].Ordinal,
			Text:       chunks[i].Text,
			Embedding:  vectors[i],
		}
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		// The upsert is atomic, but clean up defensively in case a backend
		// applied part of the batch before failing.
		if delErr := p.store.DeleteDocument(context.WithoutCancel(ctx), docID); delErr != nil {
			logger.FromContext(ctx).Error("rollback after failed index write failed",
				"document_id", docID, "error", delErr)
		}
		return 0, p.fail(ctx, docID, "index", err)
	}

	if err := p.catalog.SetIndexed(ctx, docID, len(chunks)); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedChunks embeds every chunk before anything touches the index, so a
// provider failure on a late chunk leaves nothing queryable. Transient
// provider errors are retried with exponential backoff.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	var vectors [][]float32
	backoff := retry.WithMaxRetries(providerMaxRetries, retry.NewExponential(providerRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		embedded, embedErr := p.embedder.EmbedDocuments(ctx, texts)
		if embedErr != nil {
			if core.HasCode(embedErr, core.CodeProviderUnavailable) || core.HasCode(embedErr, core.CodeProviderTimeout) {
				return retry.RetryableError(embedErr)
			}
			return embedErr
		}
		vectors = embedded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, core.NewError(
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)),
			core.CodeIndexCorruption,
			nil,
		)
	}
	return vectors, nil
}

// fail records the failure against the catalog and annotates the error with
// the document and stage it occurred in.
func (p *Pipeline) fail(ctx context.Context, docID core.ID, stage string, cause error) error {
	reason := fmt.Sprintf("%s: %s", stage, cause.Error())
	if err := p.catalog.SetStatus(context.WithoutCancel(ctx), docID, document.StatusFailed, reason); err != nil {
		logger.FromContext(ctx).Error("recording ingestion failure failed",
			"document_id", docID, "stage", stage, "error", err)
	}
	var coded *core.Error
	if errors.As(cause, &coded) {
		details := map[string]any{"document_id": docID, "stage": stage}
		for k, v := range coded.Details {
			details[k] = v
		}
		return core.NewError(coded.Err, coded.Code, details)
	}
	return core.NewError(
		fmt.Errorf("ingesting document %s at stage %s: %w", docID, stage, cause),
		core.CodePersistenceFailure,
		map[string]any{"document_id": docID, "stage": stage},
	)
}
