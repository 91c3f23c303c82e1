package retrieval

import (
	"context"

	"github.com/harvali/docchat/internal/domain"
)

// Repository materializes the full chunk corpus with embeddings.
type Repository interface {
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
