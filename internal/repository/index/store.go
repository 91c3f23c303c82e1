// Package index is the file-backed persistent vector index: a single
// index.json document mapping, per-document chunk files, and per-chunk
// embedding vectors, all under one directory.
//
// Layout:
//
//	index.json            document mapping + embedding model tag
//	{docID}_chunks.json   chunk text and metadata for one document
//	{chunkID}.vec         one embedding, little-endian float32
//
// index.json is rewritten atomically (temp file + rename) so a crash
// mid-write never leaves a corrupt mapping.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/metrics"
)

const indexFileName = "index.json"

// Config holds the index store settings.
type Config struct {
	// Dir is the directory holding index.json, chunk files, and vectors.
	Dir string
	// ModelTag identifies the embedding model the vectors belong to.
	// A mismatch against the persisted tag is logged loudly at open.
	ModelTag string
	// CacheTTL bounds staleness of the materialized chunk cache.
	// Zero disables caching.
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Store is the persistent index. Safe for concurrent use.
type Store struct {
	dir      string
	modelTag string
	cacheTTL time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	docs map[string]documentRecord

	cached   []domain.Chunk
	cachedAt time.Time
}

// Open loads (or initializes) the index in cfg.Dir.
func Open(cfg *Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	s := &Store{
		dir:      cfg.Dir,
		modelTag: cfg.ModelTag,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
		docs:     make(map[string]documentRecord),
	}

	data, err := os.ReadFile(s.indexPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh index.
	case err != nil:
		return nil, fmt.Errorf("read index file: %w", err)
	default:
		var file indexFile
		if uerr := json.Unmarshal(data, &file); uerr != nil {
			return nil, fmt.Errorf("parse index file: %w", uerr)
		}
		if file.Documents != nil {
			s.docs = file.Documents
		}
		if file.EmbeddingModel != "" && cfg.ModelTag != "" && file.EmbeddingModel != cfg.ModelTag {
			logger.Warn("Index was built with a different embedding model; "+
				"retrieval quality will degrade until documents are reindexed",
				zap.String("index_model", file.EmbeddingModel),
				zap.String("configured_model", cfg.ModelTag),
				zap.Int("documents", len(s.docs)))
		}
	}

	logger.Info("Index opened",
		zap.String("dir", cfg.Dir),
		zap.Int("documents", len(s.docs)))

	return s, nil
}

// Ping verifies the index directory is still accessible.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("index directory: %w", err)
	}
	return nil
}

// Exists reports whether a document with the given ID is indexed.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok
}

// Get returns the metadata of one document.
func (s *Store) Get(id string) (domain.DocumentMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return domain.DocumentMeta{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return metaFromRecord(id, rec), nil
}

// SaveDocument persists a document: each chunk's embedding as a .vec file,
// the chunk texts as one JSON file, and the updated mapping. Re-saving an
// existing ID overwrites it.
func (s *Store) SaveDocument(ctx context.Context, meta domain.DocumentMeta, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]chunkRecord, len(chunks))
	for i, c := range chunks {
		if err := writeFileAtomic(s.vecPath(c.ID), vectorToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("write embedding %s: %w", c.ID, err)
		}
		records[i] = chunkRecord{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Source:     c.Source,
			Content:    c.Content,
			Index:      c.Index,
		}
	}

	chunkData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks for %s: %w", meta.ID, err)
	}
	if err := writeFileAtomic(s.chunksPath(meta.ID), chunkData); err != nil {
		return fmt.Errorf("write chunks for %s: %w", meta.ID, err)
	}

	s.docs[meta.ID] = recordFromMeta(meta)
	if err := s.flushIndexLocked(); err != nil {
		return err
	}

	s.invalidateCacheLocked()
	return nil
}

// Delete removes a document and its chunk and vector files. Missing vector
// files are tolerated: the mapping is authoritative.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}

	for _, chunkID := range rec.ChunkIDs {
		if err := os.Remove(s.vecPath(chunkID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove embedding file",
				zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}
	if err := os.Remove(s.chunksPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove chunk file",
			zap.String("document_id", id), zap.Error(err))
	}

	delete(s.docs, id)
	if err := s.flushIndexLocked(); err != nil {
		return err
	}

	s.invalidateCacheLocked()
	return nil
}

// List returns all documents, most recently uploaded first. Documents
// without a timestamp sort last.
func (s *Store) List() []domain.DocumentMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]domain.DocumentMeta, 0, len(s.docs))
	for id, rec := range s.docs {
		metas = append(metas, metaFromRecord(id, rec))
	}

	sort.SliceStable(metas, func(i, j int) bool {
		ti, tj := metas[i].UploadedAt, metas[j].UploadedAt
		switch {
		case ti.IsZero():
			return false
		case tj.IsZero():
			return true
		default:
			return ti.After(tj)
		}
	})

	return metas
}

// Stats summarizes the corpus.
func (s *Store) Stats() domain.IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.IndexStats
	stats.Documents = len(s.docs)
	for _, rec := range s.docs {
		stats.Chunks += rec.ChunkCount
		stats.TotalBytes += rec.FileSize
	}
	stats.TotalMegabytes = math.Round(float64(stats.TotalBytes)/(1024*1024)*100) / 100
	return stats
}

// AllChunks materializes every chunk in the corpus with its embedding.
// Results are cached for the configured TTL; every write invalidates the
// cache synchronously, so a hit is never stale.
func (s *Store) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.cached != nil && s.cacheTTL > 0 && time.Since(s.cachedAt) < s.cacheTTL {
		chunks := s.cached
		s.mu.RUnlock()
		metrics.ChunkCacheTotal.WithLabelValues("hit").Inc()
		return chunks, nil
	}
	s.mu.RUnlock()

	metrics.ChunkCacheTotal.WithLabelValues("miss").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := make([]domain.Chunk, 0)
	for id := range s.docs {
		docChunks, err := s.loadDocumentChunksLocked(id)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docChunks...)
	}

	if s.cacheTTL > 0 {
		s.cached = chunks
		s.cachedAt = time.Now()
	}

	return chunks, nil
}

// loadDocumentChunksLocked reads one document's chunk file and vector
// files. Chunks whose vector file is missing or corrupt are skipped with a
// warning rather than failing the whole read.
func (s *Store) loadDocumentChunksLocked(id string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(s.chunksPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Chunk file missing for indexed document",
				zap.String("document_id", id))
			return nil, nil
		}
		return nil, fmt.Errorf("read chunks for %s: %w", id, err)
	}

	var records []chunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse chunks for %s: %w", id, err)
	}

	chunks := make([]domain.Chunk, 0, len(records))
	for _, rec := range records {
		vecData, err := os.ReadFile(s.vecPath(rec.ID))
		if err != nil {
			s.logger.Warn("Embedding file unreadable, skipping chunk",
				zap.String("chunk_id", rec.ID), zap.Error(err))
			continue
		}
		vec, err := bytesToVector(vecData)
		if err != nil {
			s.logger.Warn("Embedding file corrupt, skipping chunk",
				zap.String("chunk_id", rec.ID), zap.Error(err))
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			Source:     rec.Source,
			Content:    rec.Content,
			Index:      rec.Index,
			Embedding:  vec,
		})
	}

	return chunks, nil
}

// Close flushes the document registry one last time. Every write already
// persists eagerly, so this is a safety flush on shutdown.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushIndexLocked()
}

func (s *Store) flushIndexLocked() error {
	file := indexFile{
		EmbeddingModel: s.modelTag,
		Documents:      s.docs,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *Store) invalidateCacheLocked() {
	s.cached = nil
	s.cachedAt = time.Time{}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *Store) chunksPath(docID string) string {
	return filepath.Join(s.dir, docID+"_chunks.json")
}

func (s *Store) vecPath(chunkID string) string {
	return filepath.Join(s.dir, chunkID+".vec")
}

// writeFileAtomic writes via a temp file in the same directory and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
