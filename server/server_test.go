package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/askdocs/askdocs/engine/auth"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/askdocs/askdocs/engine/knowledge/answer"
	"github.com/askdocs/askdocs/engine/knowledge/chunk"
	"github.com/askdocs/askdocs/engine/knowledge/document"
	"github.com/askdocs/askdocs/engine/knowledge/generator"
	"github.com/askdocs/askdocs/engine/knowledge/ingest"
	"github.com/askdocs/askdocs/engine/knowledge/retriever"
	"github.com/askdocs/askdocs/engine/knowledge/session"
	"github.com/askdocs/askdocs/engine/knowledge/vectordb"
	"github.com/askdocs/askdocs/pkg/config"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{ dimension int }

func (s stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, s.dimension)
		vec[0] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

func (s stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	vec := make([]float32, s.dimension)
	vec[0] = 1
	return vec, nil
}

func (s stubEmbedder) Dimension() int { return s.dimension }

type stubGenerator struct{ tokens []string }

func (g stubGenerator) Stream(ctx context.Context, _ string) (<-chan generator.Fragment, error) {
	out := make(chan generator.Fragment, len(g.tokens))
	go func() {
		defer close(out)
		for _, tok := range g.tokens {
			select {
			case out <- generator.Fragment{Text: tok}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[core.ID]*model.APIKey
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: make(map[core.ID]*model.APIKey)}
}

func (r *memKeyRepo) CreateKey(_ context.Context, key *model.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *memKeyRepo) CreateInitialKeyIfNone(_ context.Context, key *model.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) > 0 {
		return core.NewError(nil, core.CodeAlreadyBootstrapped, nil)
	}
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *memKeyRepo) GetKeyByFingerprint(_ context.Context, fingerprint []byte) (*model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.keys {
		if string(key.Fingerprint) == string(fingerprint) {
			copied := *key
			return &copied, nil
		}
	}
	return nil, uc.ErrKeyNotFound
}

func (r *memKeyRepo) GetKeyByID(_ context.Context, id core.ID) (*model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok {
		return nil, uc.ErrKeyNotFound
	}
	copied := *key
	return &copied, nil
}

func (r *memKeyRepo) ListKeys(_ context.Context) ([]*model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]*model.APIKey, 0, len(r.keys))
	for _, key := range r.keys {
		copied := *key
		keys = append(keys, &copied)
	}
	return keys, nil
}

func (r *memKeyRepo) RevokeKey(_ context.Context, id core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok {
		return uc.ErrKeyNotFound
	}
	key.Active = false
	return nil
}

type apiFixture struct {
	router      http.Handler
	superSecret string
	userSecret  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := newMemKeyRepo()
	superSecret, created, err := uc.NewBootstrap(repo, "adk_", 4).Execute(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	super, err := uc.NewValidate(repo).Execute(context.Background(), superSecret)
	require.NoError(t, err)
	_, userSecret, err := uc.NewIssue(repo, "adk_", 4).
		Execute(context.Background(), model.RoleUser, "reader", super)
	require.NoError(t, err)

	emb := stubEmbedder{dimension: 4}
	store, err := vectordb.NewMemoryStore(emb.dimension)
	require.NoError(t, err)
	splitter, err := chunk.NewSplitter(chunk.Settings{MaxSize: 200, Overlap: 20, MinSize: 10, BoundaryTolerance: 40})
	require.NoError(t, err)
	catalog := document.NewMemoryStore()
	pipeline := ingest.NewPipeline(splitter, emb, store, catalog)
	ret := retriever.New(emb, store, retriever.Options{TopK: 3})
	svc := knowledge.NewService(pipeline, answer.New(ret, stubGenerator{tokens: []string{"an ", "answer"}}),
		catalog, store, session.NewMemoryStore())

	srv := New(&config.ServerConfig{Host: "127.0.0.1", Port: 8420}, Deps{
		Knowledge: svc,
		Gate:      auth.NewGate(repo),
		Issue:     uc.NewIssue(repo, "adk_", 4),
		List:      uc.NewList(repo),
		Revoke:    uc.NewRevoke(repo),
	}, logger.SetupLogger("error", false))
	return &apiFixture{router: srv.Handler(), superSecret: superSecret, userSecret: userSecret}
}

func (f *apiFixture) do(t *testing.T, method, path, secret string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if secret != "" {
		req.Header.Set("X-API-Key", secret)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(closeNotifyRecorder{rec}, req)
	return rec
}

// closeNotifyRecorder adds the http.CloseNotifier method that gin's
// Context.Stream requires but httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func (f *apiFixture) uploadFile(t *testing.T, secret, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return f.do(t, http.MethodPost, "/api/v1/documents", secret, &body, writer.FormDataContentType())
}

func TestAPI_Documents(t *testing.T) {
	sample := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	t.Run("Should require authentication on every API route", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodGet, "/api/v1/documents", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("Should keep the health endpoint open", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodGet, "/healthz", "", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("Should upload, index and list a document", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.uploadFile(t, f.userSecret, "sample.txt", sample)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var doc document.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, document.StatusIndexed, doc.Status)
		assert.Greater(t, doc.ChunkCount, 0)

		listRec := f.do(t, http.MethodGet, "/api/v1/documents", f.userSecret, nil, "")
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.Contains(t, listRec.Body.String(), "sample.txt")
	})
	t.Run("Should reject unsupported uploads with 415", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.uploadFile(t, f.userSecret, "image.png",
			string([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
	t.Run("Should delete a document and then 404 on lookup", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.uploadFile(t, f.userSecret, "sample.txt", sample)
		require.Equal(t, http.StatusCreated, rec.Code)
		var doc document.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

		delRec := f.do(t, http.MethodDelete, "/api/v1/documents/"+doc.ID.String(), f.userSecret, nil, "")
		assert.Equal(t, http.StatusNoContent, delRec.Code)

		getRec := f.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID.String(), f.userSecret, nil, "")
		assert.Equal(t, http.StatusNotFound, getRec.Code)
	})
}

func TestAPI_Ask(t *testing.T) {
	t.Run("Should stream the answer as server-sent events", func(t *testing.T) {
		f := newAPIFixture(t)
		body := bytes.NewBufferString(`{"question": "where does the fox live?"}`)
		rec := f.do(t, http.MethodPost, "/api/v1/ask", f.userSecret, body, "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
		assert.Contains(t, rec.Body.String(), "event:session")
		assert.Contains(t, rec.Body.String(), "event:token")
		assert.Contains(t, rec.Body.String(), "event:done")
	})
	t.Run("Should reject a missing question", func(t *testing.T) {
		f := newAPIFixture(t)
		body := bytes.NewBufferString(`{}`)
		rec := f.do(t, http.MethodPost, "/api/v1/ask", f.userSecret, body, "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_Keys(t *testing.T) {
	t.Run("Should forbid key management for user-role callers", func(t *testing.T) {
		f := newAPIFixture(t)
		body := bytes.NewBufferString(`{"role": "user"}`)
		rec := f.do(t, http.MethodPost, "/api/v1/keys", f.userSecret, body, "application/json")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("Should issue and list keys for superadmin", func(t *testing.T) {
		f := newAPIFixture(t)
		body := bytes.NewBufferString(`{"role": "user", "label": "ci"}`)
		rec := f.do(t, http.MethodPost, "/api/v1/keys", f.superSecret, body, "application/json")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "adk_")

		listRec := f.do(t, http.MethodGet, "/api/v1/keys", f.superSecret, nil, "")
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.Contains(t, listRec.Body.String(), "ci")
		assert.NotContains(t, listRec.Body.String(), "hash")
	})
	t.Run("Should revoke a key and reject it afterwards", func(t *testing.T) {
		f := newAPIFixture(t)
		body := bytes.NewBufferString(`{"role": "user"}`)
		rec := f.do(t, http.MethodPost, "/api/v1/keys", f.superSecret, body, "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)

		var issued struct {
			ID     core.ID `json:"id"`
			APIKey string  `json:"api_key"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

		delRec := f.do(t, http.MethodDelete, "/api/v1/keys/"+issued.ID.String(), f.superSecret, nil, "")
		assert.Equal(t, http.StatusNoContent, delRec.Code)

		recheck := f.do(t, http.MethodGet, "/api/v1/documents", issued.APIKey, nil, "")
		assert.Equal(t, http.StatusUnauthorized, recheck.Code)
	})
}

// sseSessionID pulls the session id out of a streamed response body.
func sseSessionID(t *testing.T, body string) string {
	t.Helper()
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "event:session" && i+1 < len(lines) {
			return strings.TrimSpace(strings.TrimPrefix(lines[i+1], "data:"))
		}
	}
	t.Fatal("no session event in stream")
	return ""
}

func (f *apiFixture) ask(t *testing.T, secret, question, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	payload := map[string]string{"question": question}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := f.do(t, http.MethodPost, "/api/v1/ask", secret, bytes.NewBuffer(raw), "application/json")
	return rec
}

func TestAPI_Sessions(t *testing.T) {
	t.Run("Should open a session on the first question and announce its id", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.ask(t, f.userSecret, "where does the fox live?", "")
		require.Equal(t, http.StatusOK, rec.Code)
		sessionID := sseSessionID(t, rec.Body.String())
		require.NotEmpty(t, sessionID)

		listRec := f.do(t, http.MethodGet, "/api/v1/sessions", f.userSecret, nil, "")
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.Contains(t, listRec.Body.String(), sessionID)
		assert.Contains(t, listRec.Body.String(), "where does the fox live?")
	})
	t.Run("Should continue an existing session and record both turns", func(t *testing.T) {
		f := newAPIFixture(t)
		first := f.ask(t, f.userSecret, "first question?", "")
		require.Equal(t, http.StatusOK, first.Code)
		sessionID := sseSessionID(t, first.Body.String())

		second := f.ask(t, f.userSecret, "second question?", sessionID)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, sessionID, sseSessionID(t, second.Body.String()))

		listRec := f.do(t, http.MethodGet, "/api/v1/sessions", f.userSecret, nil, "")
		var listed struct {
			Sessions []session.Session `json:"sessions"`
		}
		require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
		require.Len(t, listed.Sessions, 1)

		msgRec := f.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", f.userSecret, nil, "")
		require.Equal(t, http.StatusOK, msgRec.Code)
		var transcript struct {
			Messages []session.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(msgRec.Body.Bytes(), &transcript))
		require.Len(t, transcript.Messages, 4)
		assert.Equal(t, session.RoleUser, transcript.Messages[0].Role)
		assert.Equal(t, "first question?", transcript.Messages[0].Content)
		assert.Equal(t, session.RoleAssistant, transcript.Messages[1].Role)
		assert.Equal(t, "an answer", transcript.Messages[1].Content)
		assert.Equal(t, "second question?", transcript.Messages[2].Content)
	})
	t.Run("Should keep sessions invisible to other keys", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.ask(t, f.userSecret, "private question?", "")
		require.Equal(t, http.StatusOK, rec.Code)
		sessionID := sseSessionID(t, rec.Body.String())

		listRec := f.do(t, http.MethodGet, "/api/v1/sessions", f.superSecret, nil, "")
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.NotContains(t, listRec.Body.String(), sessionID)

		msgRec := f.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", f.superSecret, nil, "")
		assert.Equal(t, http.StatusNotFound, msgRec.Code)

		delRec := f.do(t, http.MethodDelete, "/api/v1/sessions/"+sessionID, f.superSecret, nil, "")
		assert.Equal(t, http.StatusNotFound, delRec.Code)

		askAgain := f.ask(t, f.superSecret, "hijack?", sessionID)
		assert.Equal(t, http.StatusNotFound, askAgain.Code)
	})
	t.Run("Should delete a session with its transcript", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.ask(t, f.userSecret, "ephemeral?", "")
		require.Equal(t, http.StatusOK, rec.Code)
		sessionID := sseSessionID(t, rec.Body.String())

		delRec := f.do(t, http.MethodDelete, "/api/v1/sessions/"+sessionID, f.userSecret, nil, "")
		assert.Equal(t, http.StatusNoContent, delRec.Code)

		msgRec := f.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", f.userSecret, nil, "")
		assert.Equal(t, http.StatusNotFound, msgRec.Code)

		again := f.do(t, http.MethodDelete, "/api/v1/sessions/"+sessionID, f.userSecret, nil, "")
		assert.Equal(t, http.StatusNotFound, again.Code)
	})
}

func TestAPI_IngestText(t *testing.T) {
	t.Run("Should index raw text posted as JSON", func(t *testing.T) {
		f := newAPIFixture(t)
		sample := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
		raw, err := json.Marshal(map[string]string{"text": sample, "source": "field notes"})
		require.NoError(t, err)
		rec := f.do(t, http.MethodPost, "/api/v1/documents/text", f.userSecret, bytes.NewBuffer(raw), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var doc document.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, document.StatusIndexed, doc.Status)
		assert.Equal(t, "field notes", doc.Filename)
		assert.Greater(t, doc.ChunkCount, 0)
	})
	t.Run("Should reject a missing text field", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/documents/text", f.userSecret,
			bytes.NewBufferString(`{"source": "empty"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_Reset(t *testing.T) {
	sample := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	t.Run("Should forbid reset for non-superadmin callers", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/reset", f.userSecret, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("Should clear every indexed document for superadmin", func(t *testing.T) {
		f := newAPIFixture(t)
		up := f.uploadFile(t, f.userSecret, "sample.txt", sample)
		require.Equal(t, http.StatusCreated, up.Code)

		rec := f.do(t, http.MethodPost, "/api/v1/reset", f.superSecret, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"documents_removed":1`)

		listRec := f.do(t, http.MethodGet, "/api/v1/documents", f.userSecret, nil, "")
		require.Equal(t, http.StatusOK, listRec.Code)
		assert.NotContains(t, listRec.Body.String(), "sample.txt")
	})
}
