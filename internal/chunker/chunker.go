// Package chunker splits extracted text into overlapping word windows, the
// unit of embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/harvali/docchat/internal/domain"
)

// Default window settings, in words.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Chunker produces sliding word windows of Size words that advance by
// Size-Overlap words each step.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Non-positive arguments fall back to the defaults.
// Overlap equal to or larger than the chunk size would produce a
// non-advancing window and is rejected with ErrInvalidChunkConfig.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap %d must be less than chunk size %d: %w",
			overlap, size, domain.ErrInvalidChunkConfig)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the window overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into overlapping word windows, each joined with single
// spaces. The final window may be shorter than the chunk size. Empty or
// whitespace-only text yields no chunks; the caller decides whether that is
// an empty-document failure.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
