// Package retrieval scores the chunk corpus against a query embedding and
// returns the most similar chunks above a relevance threshold.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

// Service performs brute-force cosine similarity search over the corpus.
type Service struct {
	repo      Repository
	embedder  Embedder
	topK      int
	threshold float64
	logger    *zap.Logger
}

// New creates a retrieval service with default topK and threshold.
func New(repo Repository, embedder Embedder, topK int, threshold float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		embedder:  embedder,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve embeds the query and returns at most topK chunks whose cosine
// similarity clears the threshold, most similar first. topK <= 0 and
// out-of-range thresholds fall back to the service defaults.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = s.topK
	}
	if threshold < -1 || threshold > 1 {
		threshold = s.threshold
	}

	chunks, err := s.repo.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	result, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if domain.IsZeroVector(result.Embedding) {
		s.logger.Warn("Query embedded to a zero vector, returning no matches",
			zap.String("query", query))
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, topK)
	for _, chunk := range chunks {
		sim := domain.CosineSimilarity(result.Embedding, chunk.Embedding)
		if sim < threshold {
			continue
		}
		scored = append(scored, domain.ScoredChunk{
			ChunkID:    chunk.ID,
			Content:    chunk.Content,
			Source:     chunk.Source,
			Similarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	s.logger.Debug("Retrieval complete",
		zap.Int("corpus_chunks", len(chunks)),
		zap.Int("matches", len(scored)))

	return scored, nil
}

// RetrieveTop retrieves with the configured topK and threshold.
func (s *Service) RetrieveTop(ctx context.Context, query string) ([]domain.ScoredChunk, error) {
	return s.Retrieve(ctx, query, s.topK, s.threshold)
}

// HasRelevantContext reports whether any chunk clears the threshold for
// the query.
func (s *Service) HasRelevantContext(ctx context.Context, query string) (bool, error) {
	scored, err := s.Retrieve(ctx, query, 1, s.threshold)
	if err != nil {
		return false, err
	}
	return len(scored) > 0, nil
}
