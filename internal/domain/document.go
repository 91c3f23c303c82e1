package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DocumentID derives the content-addressed document identifier. Identical
// bytes always map to the same ID, which is how duplicate uploads are
// detected.
func DocumentID(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DocumentMeta is the per-document entry in the index mapping. Content and
// embeddings live in per-document side files, not here.
type DocumentMeta struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	FileSize   int64
	ChunkCount int
	ChunkIDs   []string
}

// Chunk is a word-window slice of a document's extracted text, the unit of
// embedding and retrieval. Embedding is populated only on the materialized
// read path; metadata-only reads leave it nil.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Content    string
	Index      int
	Embedding  []float32
}

// ChunkID derives the corpus-unique chunk identifier from its owning
// document and position.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// ScoredChunk is a retrieval result: a chunk with its similarity to the query.
type ScoredChunk struct {
	ChunkID    string
	Content    string
	Source     string
	Similarity float64
}

// IndexStats summarizes the document corpus.
type IndexStats struct {
	Documents      int
	Chunks         int
	TotalBytes     int64
	TotalMegabytes float64
}
