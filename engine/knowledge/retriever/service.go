package retriever

import (
	"context"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/askdocs/askdocs/engine/knowledge/embedder"
	"github.com/askdocs/askdocs/engine/knowledge/vectordb"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/pkoukk/tiktoken-go"
)

// Passage is one retrieved context candidate, kept with its score so the
// budget trim can drop the weakest first.
type Passage struct {
	Text  string
	Score float64
}

// Options bounds retrieval. MaxContextTokens limits the combined token count
// of returned passages.
type Options struct {
	TopK             int
	MinScore         float64
	MaxContextTokens int
}

// Service embeds a question and assembles a bounded context from the vector
// index.
type Service struct {
	embedder embedder.Embedder
	store    vectordb.Store
	opts     Options
	counter  *tokenCounter
}

// New builds a retriever over the given embedder and index.
func New(emb embedder.Embedder, store vectordb.Store, opts Options) *Service {
	return &Service{embedder: emb, store: store, opts: opts, counter: newTokenCounter()}
}

// Retrieve returns the best-matching passages for the question, ordered by
// descending score and trimmed to the token budget. An empty index yields an
// empty slice and no error.
func (s *Service) Retrieve(ctx context.Context, question string) ([]Passage, error) {
	query, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Search(ctx, query, vectordb.SearchOptions{
		TopK:     s.opts.TopK,
		MinScore: s.opts.MinScore,
	})
	if err != nil {
		return nil, err
	}
	// Stores already order results, but the trim below depends on it.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	passages := make([]Passage, len(matches))
	for i := range matches {
		passages[i] = Passage{Text: matches[i].Text, Score: matches[i].Score}
	}
	return s.trimToBudget(ctx, passages), nil
}

// trimToBudget drops the lowest-scored passages until the remainder fits the
// token budget. Passages arrive in descending score order so dropping from
// the tail keeps the strongest context. The best match always survives: when
// it alone exceeds the budget its text is truncated instead of dropped, so a
// tight budget cannot erase a non-empty retrieval result.
func (s *Service) trimToBudget(ctx context.Context, passages []Passage) []Passage {
	if s.opts.MaxContextTokens <= 0 || len(passages) == 0 {
		return passages
	}
	total := 0
	for i := range passages {
		total += s.counter.count(passages[i].Text)
	}
	dropped := 0
	for len(passages) > 1 && total > s.opts.MaxContextTokens {
		last := len(passages) - 1
		total -= s.counter.count(passages[last].Text)
		passages = passages[:last]
		dropped++
	}
	if total > s.opts.MaxContextTokens {
		passages[0].Text = s.counter.truncate(passages[0].Text, s.opts.MaxContextTokens)
	}
	if dropped > 0 {
		logger.FromContext(ctx).Debug("trimmed retrieved context to token budget",
			"dropped", dropped, "kept", len(passages), "budget", s.opts.MaxContextTokens)
	}
	return passages
}

// tokenCounter estimates token counts with the cl100k_base encoding. The
// encoding loads lazily; when it is unavailable (offline first run) a rune
// heuristic stands in so retrieval keeps working.
type tokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{}
}

func (c *tokenCounter) load() {
	c.once.Do(func() {
		encoding, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.encoding = encoding
		}
	})
}

func (c *tokenCounter) count(text string) int {
	c.load()
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	count := utf8.RuneCountInString(text)/4 + 1
	return count
}

// truncate cuts text down to at most budget tokens, respecting token
// boundaries when the encoding is available.
func (c *tokenCounter) truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	c.load()
	if c.encoding != nil {
		tokens := c.encoding.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return c.encoding.Decode(tokens[:budget])
	}
	runes := []rune(text)
	if len(runes) <= budget*4 {
		return text
	}
	return string(runes[:budget*4])
}
