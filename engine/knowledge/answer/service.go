package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/engine/knowledge/generator"
	"github.com/askdocs/askdocs/engine/knowledge/retriever"
	"github.com/askdocs/askdocs/pkg/logger"
)

const systemInstructions = "You are a documentation assistant. Answer the question using only the " +
	"context passages below. If the context does not contain the answer, say so " +
	"plainly instead of guessing."

const noContextNotice = "No matching context was found in the indexed documents."

// Turn is one prior exchange in a conversation, oldest first.
type Turn struct {
	Role    string
	Content string
}

// Service grounds generated answers in retrieved passages.
type Service struct {
	retriever *retriever.Service
	generator generator.Generator
}

// New builds the answering service.
func New(ret *retriever.Service, gen generator.Generator) *Service {
	return &Service{retriever: ret, generator: gen}
}

// Ask retrieves context for the question and streams the generated answer.
// Prior turns, if any, precede the question in the prompt so follow-up
// questions resolve against the running conversation. An empty index is not
// an error: the stream opens with an explicit no-context notice and
// generation proceeds without grounding passages.
func (s *Service) Ask(ctx context.Context, question string, history []Turn) (<-chan generator.Fragment, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	passages, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("assembled answer context",
		"passages", len(passages), "history_turns", len(history))
	stream, err := s.generator.Stream(ctx, buildPrompt(question, history, passages))
	if err != nil {
		return nil, err
	}
	if len(passages) > 0 {
		return stream, nil
	}
	return prependNotice(ctx, stream), nil
}

// prependNotice delivers the no-context notice as the first fragment, then
// forwards the generator stream unchanged.
func prependNotice(ctx context.Context, stream <-chan generator.Fragment) <-chan generator.Fragment {
	out := make(chan generator.Fragment, 1)
	go func() {
		defer close(out)
		select {
		case out <- generator.Fragment{Text: noContextNotice + "\n"}:
		case <-ctx.Done():
			return
		}
		for frag := range stream {
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// buildPrompt lays out instructions, context passages in descending score
// order, prior conversation turns, and the question.
func buildPrompt(question string, history []Turn, passages []retriever.Passage) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\nContext:\n")
	if len(passages) == 0 {
		b.WriteString(noContextNotice)
		b.WriteString("\n")
	} else {
		for i := range passages {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, passages[i].Text)
		}
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
