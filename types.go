package docchat

import (
	"context"
	"time"
)

// Embedder converts text to vector embeddings. The default implementation
// talks to the model host; supply your own to use a different provider.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer generates chat replies. The default implementation talks to
// the model host.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CheckConnection(ctx context.Context) error
}

// Message is one turn of a conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	FileSize   int64
	ChunkCount int
}

// IngestInfo is the outcome of adding one file.
type IngestInfo struct {
	DocumentID string
	Filename   string
	ChunkCount int
	Created    bool
}

// ReindexInfo summarizes a full reindex pass.
type ReindexInfo struct {
	Indexed int
	Failed  int
}

// IndexStats summarizes the corpus.
type IndexStats struct {
	Documents      int
	Chunks         int
	TotalBytes     int64
	TotalMegabytes float64
}

// SearchResult is a single retrieval hit.
type SearchResult struct {
	ChunkID    string
	Content    string
	Source     string
	Similarity float64
}

// Answer is a chat reply with the sources it was grounded in.
type Answer struct {
	ConversationID string
	Reply          string
	Sources        []string
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component → "ok"/"error"
}
