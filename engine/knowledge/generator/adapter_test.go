package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel feeds its tokens through the streaming callback the way a
// provider client would.
type scriptedModel struct {
	tokens  []string
	err     error
	endless bool
}

func (m *scriptedModel) GenerateContent(
	ctx context.Context,
	_ []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	for m.endless {
		if err := opts.StreamingFunc(ctx, []byte("token ")); err != nil {
			return nil, err
		}
	}
	var full strings.Builder
	for _, tok := range m.tokens {
		if err := opts.StreamingFunc(ctx, []byte(tok)); err != nil {
			return nil, err
		}
		full.WriteString(tok)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: full.String()}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func wrapModel(t *testing.T, impl llms.Model) *Adapter {
	t.Helper()
	adapter, err := Wrap(&Config{Provider: ProviderOllama, Model: "scripted", BufferSize: 4}, impl)
	require.NoError(t, err)
	return adapter
}

func TestAdapter_Stream(t *testing.T) {
	t.Run("Should forward fragments in order and close the channel", func(t *testing.T) {
		adapter := wrapModel(t, &scriptedModel{tokens: []string{"the ", "fox ", "runs"}})
		stream, err := adapter.Stream(context.Background(), "prompt")
		require.NoError(t, err)

		var got strings.Builder
		for frag := range stream {
			require.NoError(t, frag.Err)
			got.WriteString(frag.Text)
		}
		assert.Equal(t, "the fox runs", got.String())
	})
	t.Run("Should emit a final coded fragment on provider failure", func(t *testing.T) {
		adapter := wrapModel(t, &scriptedModel{tokens: []string{"partial "}, err: errors.New("model crashed")})
		stream, err := adapter.Stream(context.Background(), "prompt")
		require.NoError(t, err)

		var fragments []Fragment
		for frag := range stream {
			fragments = append(fragments, frag)
		}
		require.NotEmpty(t, fragments)
		last := fragments[len(fragments)-1]
		require.Error(t, last.Err)
		assert.True(t, core.HasCode(last.Err, core.CodeProviderUnavailable))
		for _, frag := range fragments[:len(fragments)-1] {
			assert.NoError(t, frag.Err)
		}
	})
	t.Run("Should type deadline failures as timeouts", func(t *testing.T) {
		adapter := wrapModel(t, &scriptedModel{err: context.DeadlineExceeded})
		stream, err := adapter.Stream(context.Background(), "prompt")
		require.NoError(t, err)

		var last Fragment
		for frag := range stream {
			last = frag
		}
		require.Error(t, last.Err)
		assert.True(t, core.HasCode(last.Err, core.CodeProviderTimeout))
	})
	t.Run("Should stop promptly and close cleanly when canceled", func(t *testing.T) {
		adapter := wrapModel(t, &scriptedModel{endless: true})
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := adapter.Stream(ctx, "prompt")
		require.NoError(t, err)

		<-stream
		cancel()

		deadline := time.After(2 * time.Second)
		for {
			select {
			case frag, ok := <-stream:
				if !ok {
					return
				}
				assert.NoError(t, frag.Err, "cancellation must not surface as an error fragment")
			case <-deadline:
				t.Fatal("stream did not close after cancellation")
			}
		}
	})
	t.Run("Should reject an empty prompt", func(t *testing.T) {
		adapter := wrapModel(t, &scriptedModel{})
		_, err := adapter.Stream(context.Background(), "   ")
		require.Error(t, err)
	})
}
