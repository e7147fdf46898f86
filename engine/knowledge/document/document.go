package document

import (
	"context"
	"errors"
	"time"

	"github.com/askdocs/askdocs/engine/core"
)

// Status tracks a document through the ingestion pipeline.
type Status string

const (
	StatusReceived  Status = "received"
	StatusChunked   Status = "chunked"
	StatusEmbedding Status = "embedding"
	StatusIndexed   Status = "indexed"
	StatusFailed    Status = "failed"
)

// Document is the catalog entry for one uploaded source file.
type Document struct {
	ID            core.ID   `db:"id" json:"id"`
	Filename      string    `db:"filename" json:"filename"`
	ContentType   string    `db:"content_type" json:"content_type"`
	ByteSize      int64     `db:"byte_size" json:"byte_size"`
	ChunkCount    int       `db:"chunk_count" json:"chunk_count"`
	Status        Status    `db:"status" json:"status"`
	FailureReason string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ErrNotFound is returned when a document ID has no catalog entry.
var ErrNotFound = errors.New("document not found")

// Store persists the document catalog. Implementations must make SetStatus
// visible to concurrent readers so the ingestion state machine can be
// observed while a document is being processed.
type Store interface {
	Create(ctx context.Context, doc *Document) error
	SetStatus(ctx context.Context, id core.ID, status Status, failureReason string) error
	SetIndexed(ctx context.Context, id core.ID, chunkCount int) error
	Get(ctx context.Context, id core.ID) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, id core.ID) error
}
