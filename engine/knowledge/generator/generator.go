package generator

import "context"

// Fragment is one streamed piece of a generated answer. Err is set at most
// once, as the final fragment, when generation fails mid-stream.
type Fragment struct {
	Text string
	Err  error
}

// Generator produces an answer as a finite, non-restartable fragment stream.
// The returned channel is closed when generation completes, fails, or the
// context is canceled; the producer stops promptly on cancellation.
type Generator interface {
	Stream(ctx context.Context, prompt string) (<-chan Fragment, error)
}
