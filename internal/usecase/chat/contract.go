package chat

import (
	"context"

	"github.com/harvali/docchat/internal/domain"
)

// Retriever finds the chunks most relevant to a question.
type Retriever interface {
	RetrieveTop(ctx context.Context, query string) ([]domain.ScoredChunk, error)
}

// IndexReader exposes corpus-level facts needed for refusals.
type IndexReader interface {
	Stats() domain.IndexStats
}

// Completer generates a chat reply from a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
	CheckConnection(ctx context.Context) error
}
