package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge/answer"
	"github.com/askdocs/askdocs/engine/knowledge/document"
	"github.com/askdocs/askdocs/engine/knowledge/generator"
	"github.com/askdocs/askdocs/engine/knowledge/ingest"
	"github.com/askdocs/askdocs/engine/knowledge/session"
	"github.com/askdocs/askdocs/engine/knowledge/source"
	"github.com/askdocs/askdocs/engine/knowledge/vectordb"
	"github.com/askdocs/askdocs/pkg/logger"
)

// historyLimit caps how many prior turns feed the answer prompt.
const historyLimit = 10

// sessionTitleLimit caps the auto-generated session title length in runes.
const sessionTitleLimit = 80

// manualSource is the catalog filename for raw text ingested without a file.
const manualSource = "manual_input"

// Service is the single entry point for document knowledge: uploads,
// catalog queries, deletion, conversation threads and question answering.
type Service struct {
	pipeline *ingest.Pipeline
	answerer *answer.Service
	catalog  document.Store
	store    vectordb.Store
	sessions session.Store
}

// NewService assembles the knowledge facade.
func NewService(
	pipeline *ingest.Pipeline,
	answerer *answer.Service,
	catalog document.Store,
	store vectordb.Store,
	sessions session.Store,
) *Service {
	return &Service{pipeline: pipeline, answerer: answerer, catalog: catalog, store: store, sessions: sessions}
}

// UploadDocument parses, catalogs and ingests one uploaded file. The
// returned document reflects the final state; a failed ingestion leaves a
// failed catalog entry behind for inspection and returns the cause.
func (s *Service) UploadDocument(ctx context.Context, filename string, data []byte) (*document.Document, error) {
	parsed, err := source.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	doc := &document.Document{
		ID:          id,
		Filename:    filename,
		ContentType: parsed.ContentType,
		ByteSize:    int64(len(data)),
		Status:      document.StatusReceived,
		CreatedAt:   time.Now().UTC(),
	}
	return s.ingestDocument(ctx, doc, parsed.Text)
}

// IngestText catalogs and indexes raw text as if it were an uploaded
// plain-text file. An empty source name falls back to manual_input.
func (s *Service) IngestText(ctx context.Context, sourceName, text string) (*document.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.NewError(errors.New("text must not be empty"), core.CodeUnsupportedFormat, nil)
	}
	if sourceName == "" {
		sourceName = manualSource
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	doc := &document.Document{
		ID:          id,
		Filename:    sourceName,
		ContentType: "text/plain; charset=utf-8",
		ByteSize:    int64(len(text)),
		Status:      document.StatusReceived,
		CreatedAt:   time.Now().UTC(),
	}
	return s.ingestDocument(ctx, doc, text)
}

func (s *Service) ingestDocument(ctx context.Context, doc *document.Document, text string) (*document.Document, error) {
	if err := s.catalog.Create(ctx, doc); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	log.Info("document received", "document_id", doc.ID, "filename", doc.Filename, "bytes", doc.ByteSize)

	count, err := s.pipeline.Run(ctx, doc.ID, text)
	if err != nil {
		return nil, err
	}
	log.Info("document indexed", "document_id", doc.ID, "chunks", count)
	return s.catalog.Get(ctx, doc.ID)
}

// Ask streams a generated answer grounded in the indexed documents, within
// the caller's conversation thread. A zero sessionID starts a new thread
// titled after the question; otherwise the thread must belong to keyID. Both
// sides of the exchange are recorded, the answer once its stream completes
// cleanly.
func (s *Service) Ask(
	ctx context.Context,
	keyID, sessionID core.ID,
	question string,
) (core.ID, <-chan generator.Fragment, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, errors.New("question must not be empty")
	}
	sess, err := s.resolveSession(ctx, keyID, sessionID, question)
	if err != nil {
		return "", nil, err
	}
	history, err := s.sessions.ListMessages(ctx, sess.ID)
	if err != nil {
		return "", nil, err
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	turns := make([]answer.Turn, len(history))
	for i := range history {
		turns[i] = answer.Turn{Role: string(history[i].Role), Content: history[i].Content}
	}
	stream, err := s.answerer.Ask(ctx, question, turns)
	if err != nil {
		return "", nil, err
	}
	if err := s.recordMessage(ctx, sess.ID, session.RoleUser, question); err != nil {
		return "", nil, err
	}
	return sess.ID, s.recordAnswer(ctx, sess.ID, stream), nil
}

func (s *Service) resolveSession(ctx context.Context, keyID, sessionID core.ID, question string) (*session.Session, error) {
	if !sessionID.IsZero() {
		return s.sessions.Get(ctx, sessionID, keyID)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &session.Session{
		ID:        id,
		KeyID:     keyID,
		Title:     sessionTitle(question),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("chat session created", "session_id", sess.ID, "key_id", keyID)
	return sess, nil
}

func sessionTitle(question string) string {
	runes := []rune(question)
	if len(runes) > sessionTitleLimit {
		return string(runes[:sessionTitleLimit])
	}
	return question
}

func (s *Service) recordMessage(ctx context.Context, sessionID core.ID, role session.MessageRole, content string) error {
	id, err := core.NewID()
	if err != nil {
		return err
	}
	return s.sessions.AddMessage(ctx, &session.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// recordAnswer forwards the generator stream and, once it closes without an
// error fragment, records the assembled answer as the assistant turn. A
// canceled or failed stream leaves no assistant message behind.
func (s *Service) recordAnswer(ctx context.Context, sessionID core.ID, stream <-chan generator.Fragment) <-chan generator.Fragment {
	out := make(chan generator.Fragment)
	go func() {
		defer close(out)
		var full strings.Builder
		failed := false
		for frag := range stream {
			if frag.Err != nil {
				failed = true
			}
			full.WriteString(frag.Text)
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
		}
		if failed || full.Len() == 0 {
			return
		}
		// The transcript write must survive a client that disconnects the
		// moment the stream ends.
		saveCtx := context.WithoutCancel(ctx)
		if err := s.recordMessage(saveCtx, sessionID, session.RoleAssistant, full.String()); err != nil {
			logger.FromContext(ctx).Error("failed to record assistant turn",
				"session_id", sessionID, "error", err)
		}
	}()
	return out
}

// ListSessions returns the caller's conversation threads, most recently
// active first.
func (s *Service) ListSessions(ctx context.Context, keyID core.ID) ([]session.Session, error) {
	return s.sessions.List(ctx, keyID)
}

// SessionMessages returns the transcript of one of the caller's sessions,
// oldest first.
func (s *Service) SessionMessages(ctx context.Context, id, keyID core.ID) ([]session.Message, error) {
	if _, err := s.sessions.Get(ctx, id, keyID); err != nil {
		return nil, err
	}
	return s.sessions.ListMessages(ctx, id)
}

// DeleteSession removes one of the caller's sessions and its transcript.
func (s *Service) DeleteSession(ctx context.Context, id, keyID core.ID) error {
	return s.sessions.Delete(ctx, id, keyID)
}

// GetDocument returns one catalog entry.
func (s *Service) GetDocument(ctx context.Context, id core.ID) (*document.Document, error) {
	return s.catalog.Get(ctx, id)
}

// ListDocuments returns the catalog, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]document.Document, error) {
	return s.catalog.List(ctx)
}

// DeleteDocument removes a document from the catalog and every chunk of it
// from the vector index. The index is cleared first so a partial failure
// cannot leave queryable chunks for a missing catalog entry.
func (s *Service) DeleteDocument(ctx context.Context, id core.ID) error {
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, id)
}

// Reset clears the knowledge base: every document leaves both the vector
// index and the catalog. Conversation threads are untouched. It returns the
// number of documents removed.
func (s *Service) Reset(ctx context.Context) (int, error) {
	docs, err := s.catalog.List(ctx)
	if err != nil {
		return 0, err
	}
	for i := range docs {
		if err := s.store.DeleteDocument(ctx, docs[i].ID); err != nil {
			return i, err
		}
		if err := s.catalog.Delete(ctx, docs[i].ID); err != nil {
			return i, err
		}
	}
	logger.FromContext(ctx).Info("knowledge base reset", "documents_removed", len(docs))
	return len(docs), nil
}
