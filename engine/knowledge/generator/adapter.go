package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider enumerates supported generation backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Config describes a provider-backed generator.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string
	// BufferSize bounds the fragment channel between the provider stream and
	// the consumer.
	BufferSize int
}

// Adapter streams completions from a langchaingo model through a bounded
// channel, forwarding fragments as they arrive.
type Adapter struct {
	provider   Provider
	model      string
	bufferSize int
	impl       llms.Model
}

// New constructs a provider-backed generation adapter.
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("generator config is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("generator model is required")
	}
	impl, err := buildProviderModel(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo model.
func Wrap(cfg *Config, impl llms.Model) (*Adapter, error) {
	if impl == nil {
		return nil, errors.New("generator implementation is required")
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Adapter{
		provider:   cfg.Provider,
		model:      cfg.Model,
		bufferSize: bufferSize,
		impl:       impl,
	}, nil
}

// Stream starts generation and returns the fragment channel. Fragments are
// forwarded as the provider emits them; nothing is buffered beyond the
// channel capacity. When ctx is canceled the streaming callback returns the
// cancellation error, which stops the provider call.
func (a *Adapter) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("generator prompt is required")
	}
	fragments := make(chan Fragment, a.bufferSize)
	go func() {
		defer close(fragments)
		log := logger.FromContext(ctx)
		_, err := llms.GenerateFromSinglePrompt(ctx, a.impl, prompt,
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				select {
				case fragments <- Fragment{Text: string(chunk)}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Debug("Generation canceled by consumer")
				return
			}
			coded := a.providerError(err)
			select {
			case fragments <- Fragment{Err: coded}:
			case <-ctx.Done():
			}
		}
	}()
	return fragments, nil
}

func (a *Adapter) providerError(err error) error {
	code := core.CodeProviderUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		code = core.CodeProviderTimeout
	}
	return core.NewError(
		fmt.Errorf("generator %s/%s: %w", a.provider, a.model, err),
		code,
		nil,
	)
}

func buildProviderModel(cfg *Config) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("generator: failed to initialize openai client: %w", err)
		}
		return model, nil
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("generator: failed to initialize ollama client: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("generator: provider %q is not supported", cfg.Provider)
	}
}
