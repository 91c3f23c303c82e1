// Package ingest implements the document ingestion pipeline: extract,
// chunk, embed, persist.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/metrics"
)

// Service handles document ingestion and corpus management.
type Service struct {
	extractor Extractor
	chunker   Chunker
	embedder  Embedder
	repo      Repository
	docsDir   string
	logger    *zap.Logger

	// writeMu serializes the whole ingest unit so concurrent uploads of
	// the same bytes never race between the duplicate check and the save.
	writeMu sync.Mutex
}

// New creates an ingestion service. docsDir is where original uploads live;
// ReindexAll re-reads it.
func New(
	extractor Extractor,
	chunker Chunker,
	embedder Embedder,
	repo Repository,
	docsDir string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		repo:      repo,
		docsDir:   docsDir,
		logger:    logger,
	}
}

// Result describes the outcome of ingesting one file.
type Result struct {
	DocumentID string
	Filename   string
	ChunkCount int
	Created    bool
}

// ReindexResult summarizes a full reindex pass.
type ReindexResult struct {
	Indexed int
	Failed  int
}

// Ingest processes one file into the index. The document ID is the SHA-256
// of the file bytes, so re-uploading identical content is a no-op unless
// force is set.
func (s *Service) Ingest(ctx context.Context, path string, force bool) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("read document: %w", err)
	}

	docID := domain.DocumentID(data)
	filename := filepath.Base(path)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !force && s.repo.Exists(docID) {
		existing, err := s.repo.Get(docID)
		if err != nil {
			return Result{}, fmt.Errorf("get existing document: %w", err)
		}
		metrics.DocumentsIngestedTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Duplicate upload skipped",
			zap.String("document_id", docID),
			zap.String("filename", filename))
		return Result{
			DocumentID: docID,
			Filename:   existing.Filename,
			ChunkCount: existing.ChunkCount,
			Created:    false,
		}, nil
	}

	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("extract %s: %w", filename, err)
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%s: %w", filename, domain.ErrEmptyDocument)
	}

	batch, err := s.embedTexts(ctx, pieces)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("embed %s: %w", filename, err)
	}

	chunks := make([]domain.Chunk, len(pieces))
	chunkIDs := make([]string, len(pieces))
	for i, content := range pieces {
		chunkID := domain.ChunkID(docID, i)
		chunks[i] = domain.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Source:     filename,
			Content:    content,
			Index:      i,
			Embedding:  batch.Embeddings[i],
		}
		chunkIDs[i] = chunkID
	}

	meta := domain.DocumentMeta{
		ID:         docID,
		Filename:   filename,
		UploadedAt: time.Now(),
		FileSize:   int64(len(data)),
		ChunkCount: len(chunks),
		ChunkIDs:   chunkIDs,
	}

	if err := s.repo.SaveDocument(ctx, meta, chunks); err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("save %s: %w", filename, err)
	}

	metrics.DocumentsIngestedTotal.WithLabelValues("created").Inc()
	s.logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", batch.TotalTokens))

	return Result{
		DocumentID: docID,
		Filename:   filename,
		ChunkCount: len(chunks),
		Created:    true,
	}, nil
}

// embedTexts uses the native batch endpoint when the embedder supports it.
func (s *Service) embedTexts(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embedder, texts)
}

// Delete removes a document from the index and its original upload from
// disk (if one is still there).
func (s *Service) Delete(ctx context.Context, id string) error {
	meta, err := s.repo.Get(id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if meta.Filename != "" && s.docsDir != "" {
		path := filepath.Join(s.docsDir, meta.Filename)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove original upload",
				zap.String("path", path), zap.Error(err))
		}
	}

	s.logger.Info("Document deleted", zap.String("document_id", id))
	return nil
}

// List returns all indexed documents, most recent first.
func (s *Service) List() []domain.DocumentMeta {
	return s.repo.List()
}

// Stats summarizes the corpus.
func (s *Service) Stats() domain.IndexStats {
	return s.repo.Stats()
}

// ReindexAll re-ingests every supported file in the documents directory
// with force set, rebuilding chunks and vectors with the current chunking
// and embedding configuration. Per-file failures are logged and skipped.
func (s *Service) ReindexAll(ctx context.Context) (ReindexResult, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("read documents directory: %w", err)
	}

	var result ReindexResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if domain.KindOfPath(entry.Name()) == domain.KindUnknown {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(s.docsDir, entry.Name())
		if _, err := s.Ingest(ctx, path, true); err != nil {
			result.Failed++
			s.logger.Warn("Reindex failed for file",
				zap.String("filename", entry.Name()), zap.Error(err))
			continue
		}
		result.Indexed++
	}

	s.logger.Info("Reindex complete",
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", result.Failed))

	return result, nil
}
