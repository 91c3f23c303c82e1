package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/harvali/docchat/internal/domain"
)

// indexFile is the on-disk shape of index.json: the document mapping plus
// the embedding model tag the vectors were produced with.
type indexFile struct {
	EmbeddingModel string                    `json:"embedding_model,omitempty"`
	Documents      map[string]documentRecord `json:"documents"`
}

// documentRecord is the per-document entry inside index.json.
type documentRecord struct {
	Filename   string   `json:"filename"`
	UploadedAt string   `json:"uploaded_at,omitempty"`
	FileSize   int64    `json:"file_size"`
	ChunkCount int      `json:"chunk_count"`
	ChunkIDs   []string `json:"chunk_ids"`
}

// chunkRecord is one element of a {docID}_chunks.json file. Embeddings are
// stored separately in per-chunk .vec files.
type chunkRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Content    string `json:"content"`
	Index      int    `json:"index"`
}

func recordFromMeta(meta domain.DocumentMeta) documentRecord {
	rec := documentRecord{
		Filename:   meta.Filename,
		FileSize:   meta.FileSize,
		ChunkCount: meta.ChunkCount,
		ChunkIDs:   meta.ChunkIDs,
	}
	if !meta.UploadedAt.IsZero() {
		rec.UploadedAt = meta.UploadedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

func metaFromRecord(id string, rec documentRecord) domain.DocumentMeta {
	meta := domain.DocumentMeta{
		ID:         id,
		Filename:   rec.Filename,
		FileSize:   rec.FileSize,
		ChunkCount: rec.ChunkCount,
		ChunkIDs:   rec.ChunkIDs,
	}
	if rec.UploadedAt != "" {
		// A malformed timestamp leaves the zero value, which sorts last.
		if t, err := time.Parse(time.RFC3339, rec.UploadedAt); err == nil {
			meta.UploadedAt = t
		}
	}
	return meta
}

// vectorToBytes serializes []float32 to binary (4 bytes per float, little-endian).
func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToVector deserializes binary data back to []float32.
func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
