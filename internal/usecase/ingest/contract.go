package ingest

import (
	"context"

	"github.com/harvali/docchat/internal/domain"
)

// Extractor pulls plain text out of a document file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits extracted text into overlapping word windows.
type Chunker interface {
	Split(text string) []string
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Repository defines the storage contract for the document index.
type Repository interface {
	Exists(id string) bool
	Get(id string) (domain.DocumentMeta, error)
	SaveDocument(ctx context.Context, meta domain.DocumentMeta, chunks []domain.Chunk) error
	Delete(ctx context.Context, id string) error
	List() []domain.DocumentMeta
	Stats() domain.IndexStats
}
