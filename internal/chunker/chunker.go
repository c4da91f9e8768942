// Package chunker splits extracted text into bounded, overlapping
// segments suitable for embedding.
package chunker

import (
	"fmt"
)

// Chunk is a contiguous span of the source text. Start and End are
// rune offsets, not byte offsets: extracted PDF text routinely carries
// multi-byte punctuation and non-Latin scripts, and chunk sizes and
// overlaps are guaranteed in characters.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into chunks of at most maxSize characters, where
// each chunk shares its leading overlap characters with the tail of the
// previous chunk.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a Chunker. overlap must be smaller than maxSize.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split chunks the text. Guarantees: every chunk is at most maxSize
// characters, indices are contiguous from 0, consecutive chunks share
// exactly overlap characters, every chunk is valid UTF-8, and the
// concatenation of each chunk's non-overlapping portion reconstructs
// the input.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("cannot chunk empty text")
	}

	runes := []rune(text)
	if len(runes) <= c.maxSize {
		return []Chunk{{Index: 0, Start: 0, End: len(runes), Text: text}}, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + c.maxSize
		if end >= len(runes) {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Start: start,
				End:   len(runes),
				Text:  string(runes[start:]),
			})
			break
		}

		cut := c.findCut(runes, start, end)
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   cut,
			Text:  string(runes[start:cut]),
		})
		start = cut - c.overlap
	}

	return chunks, nil
}

// findCut looks backward from the hard limit for a paragraph boundary,
// then a sentence boundary, within a tolerance window. Without one it
// falls back to the hard cutoff.
func (c *Chunker) findCut(runes []rune, start, end int) int {
	window := c.maxSize / 5
	if window > end-start-c.overlap-1 {
		window = end - start - c.overlap - 1
	}
	if window <= 0 {
		return end
	}
	searchStart := end - window

	for i := end - 2; i >= searchStart; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return c.accept(start, i+2, end)
		}
	}

	for i := end - 2; i >= searchStart; i-- {
		if sentenceEnd(runes[i]) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			return c.accept(start, i+2, end)
		}
	}
	return end
}

func sentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// accept rejects a cut that would prevent forward progress once the
// next chunk rewinds by overlap.
func (c *Chunker) accept(start, cut, end int) int {
	if cut-c.overlap <= start {
		return end
	}
	return cut
}
