package chunk

import "github.com/askdocs/askdocs/engine/core"

// Chunk is a contiguous passage extracted from one document, ready for
// embedding. Start/End are rune offsets into the normalized document text.
type Chunk struct {
	ID         string
	DocumentID core.ID
	Ordinal    int
	Text       string
	Start      int
	End        int
}

// Settings configures the splitter. All sizes are in runes of the
// normalized text.
type Settings struct {
	// MaxSize is the sliding window width.
	MaxSize int
	// Overlap is how far consecutive windows overlap; the stride is
	// MaxSize-Overlap.
	Overlap int
	// MinSize is the threshold under which a document yields a single chunk.
	MinSize int
	// BoundaryTolerance is how far before MaxSize the splitter may pull the
	// cut back to land on a sentence boundary.
	BoundaryTolerance int
}
