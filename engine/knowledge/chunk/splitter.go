package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/askdocs/askdocs/engine/core"
)

// Splitter cuts document text into overlapping chunks with a greedy sliding
// window. The same input and settings always yield the same chunk sequence.
type Splitter struct {
	settings Settings
}

// NewSplitter builds a splitter with validated settings.
func NewSplitter(settings Settings) (*Splitter, error) {
	if settings.MaxSize <= 0 {
		return nil, errors.New("chunk: max size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.MaxSize {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than max size %d", settings.Overlap, settings.MaxSize)
	}
	if settings.MinSize <= 0 {
		settings.MinSize = 1
	}
	if settings.BoundaryTolerance < 0 {
		settings.BoundaryTolerance = 0
	}
	// The stride is fixed at MaxSize-Overlap, so a boundary cut deeper than
	// the overlap would leave runes between the cut and the next window
	// start in no chunk at all.
	if settings.BoundaryTolerance > settings.Overlap {
		settings.BoundaryTolerance = settings.Overlap
	}
	return &Splitter{settings: settings}, nil
}

// Split chunks the document text. Empty input fails with UNSUPPORTED_FORMAT;
// input shorter than MinSize yields exactly one chunk.
func (s *Splitter) Split(docID core.ID, text string) ([]Chunk, error) {
	runes := []rune(normalize(text))
	if len(runes) == 0 {
		return nil, core.NewError(errors.New("document text is empty"), core.CodeUnsupportedFormat, nil)
	}
	if len(runes) <= s.settings.MinSize {
		return []Chunk{newChunk(docID, 0, runes, 0, len(runes))}, nil
	}
	stride := s.settings.MaxSize - s.settings.Overlap
	chunks := make([]Chunk, 0, len(runes)/stride+1)
	ordinal := 0
	for start := 0; start < len(runes); start += stride {
		end := start + s.settings.MaxSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := s.boundaryCut(runes, start, end); cut > start {
			end = cut
		}
		chunks = append(chunks, newChunk(docID, ordinal, runes, start, end))
		ordinal++
		if start+s.settings.MaxSize >= len(runes) {
			break
		}
	}
	return chunks, nil
}

// boundaryCut searches backwards from end within the tolerance for a sentence
// boundary and returns the cut position, or end when none is found.
func (s *Splitter) boundaryCut(runes []rune, start, end int) int {
	limit := end - s.settings.BoundaryTolerance
	if limit <= start {
		limit = start + 1
	}
	for i := end; i > limit; i-- {
		if isSentenceEnd(runes[i-1]) && (i == len(runes) || unicode.IsSpace(runes[i])) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func newChunk(docID core.ID, ordinal int, runes []rune, start, end int) Chunk {
	text := string(runes[start:end])
	return Chunk{
		ID:         chunkID(docID, ordinal, text),
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
		Start:      start,
		End:        end,
	}
}

// normalize collapses horizontal whitespace runs and normalizes line endings
// so chunk offsets are stable across upload encodings.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.TrimSpace(text) {
		if r == '\n' {
			b.WriteRune('\n')
			lastSpace = false
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

func chunkID(docID core.ID, ordinal int, text string) string {
	sum := sha256.Sum256([]byte(docID.String() + "::" + fmt.Sprint(ordinal) + "::" + text))
	return hex.EncodeToString(sum[:16])
}
