package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/engine/core"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider enumerates supported embedding backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Config describes a provider-backed embedder.
type Config struct {
	Provider  Provider
	Model     string
	Dimension int
	BatchSize int
	APIKey    string
	BaseURL   string
	// CacheSize > 0 enables an LRU cache for query embeddings.
	CacheSize int
}

// Adapter wraps a langchaingo embedder and enforces the declared dimension.
type Adapter struct {
	provider  Provider
	model     string
	dimension int
	impl      embeddings.Embedder
	cache     *lru.Cache[string, []float32]
}

var (
	errMissingModel     = errors.New("embedder model is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
)

// New constructs a provider-backed embedder adapter.
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := buildProviderEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return wrap(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo embedder.
// Used by tests and custom providers.
func Wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return wrap(cfg, impl)
}

func wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	adapter := &Adapter{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder: init cache: %w", err)
		}
		adapter.cache = cache
	}
	return adapter, nil
}

// Dimension returns the configured vector dimension.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// EmbedDocuments embeds a batch of chunk texts.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, a.providerError(err)
	}
	if len(vectors) != len(texts) {
		return nil, core.NewError(
			fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)),
			core.CodeProviderUnavailable,
			nil,
		)
	}
	for i := range vectors {
		if err := a.checkDimension(vectors[i]); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single question, consulting the LRU cache first.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if a.cache != nil {
		if vector, ok := a.cache.Get(key); ok {
			return cloneVector(vector), nil
		}
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.providerError(err)
	}
	if err := a.checkDimension(vector); err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Add(key, cloneVector(vector))
	}
	return vector, nil
}

func (a *Adapter) checkDimension(vector []float32) error {
	if len(vector) != a.dimension {
		return core.NewError(
			fmt.Errorf("embedder returned %d dimensions, index expects %d", len(vector), a.dimension),
			core.CodeIndexCorruption,
			map[string]any{"model": a.model},
		)
	}
	return nil
}

func (a *Adapter) providerError(err error) error {
	code := core.CodeProviderUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		code = core.CodeProviderTimeout
	}
	return core.NewError(
		fmt.Errorf("embedder %s/%s: %w", a.provider, a.model, err),
		code,
		nil,
	)
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return errMissingModel
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	return nil
}

func buildProviderEmbedder(cfg *Config) (embeddings.Embedder, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	options := []embeddings.Option{
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(true),
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		openaiOpts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			openaiOpts = append(openaiOpts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(openaiOpts...)
		if err != nil {
			return nil, fmt.Errorf("embedder: failed to initialize openai client: %w", err)
		}
		return embeddings.NewEmbedder(client, options...)
	case ProviderOllama:
		ollamaOpts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			ollamaOpts = append(ollamaOpts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(ollamaOpts...)
		if err != nil {
			return nil, fmt.Errorf("embedder: failed to initialize ollama client: %w", err)
		}
		return embeddings.NewEmbedder(client, options...)
	default:
		return nil, fmt.Errorf("embedder: provider %q is not supported", cfg.Provider)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
