package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

type mockRepo struct {
	chunks []domain.Chunk
	err    error
}

func (m *mockRepo) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

// vecAtAngle builds a 2D unit vector whose cosine against (1, 0) equals cos.
func vecAtAngle(cos float64) []float32 {
	sin := math.Sqrt(1 - cos*cos)
	return []float32{float32(cos), float32(sin)}
}

func corpus(t *testing.T, sims ...float64) []domain.Chunk {
	t.Helper()
	chunks := make([]domain.Chunk, len(sims))
	for i, sim := range sims {
		chunks[i] = domain.Chunk{
			ID:        domain.ChunkID("doc", i),
			Content:   "chunk",
			Source:    "doc.txt",
			Embedding: vecAtAngle(sim),
		}
	}
	return chunks
}

func newTestService(repo Repository, embedder Embedder) *Service {
	return New(repo, embedder, 3, 0.3, zap.NewNop())
}

func TestRetrieve_OrdersBySimilarity(t *testing.T) {
	// Query along (1, 0); corpus at cosines 0.5, 0.9, 0.2.
	repo := &mockRepo{chunks: corpus(t, 0.5, 0.9, 0.2)}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}})

	scored, err := svc.Retrieve(context.Background(), "query", 3, 0.3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// 0.2 is below threshold; 0.9 outranks 0.5.
	if len(scored) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(scored))
	}
	if scored[0].ChunkID != domain.ChunkID("doc", 1) {
		t.Errorf("best match = %s, expected chunk 1", scored[0].ChunkID)
	}
	if scored[1].ChunkID != domain.ChunkID("doc", 0) {
		t.Errorf("second match = %s, expected chunk 0", scored[1].ChunkID)
	}
	if scored[0].Similarity < scored[1].Similarity {
		t.Error("results not in descending similarity order")
	}
}

func TestRetrieve_TopKLimits(t *testing.T) {
	repo := &mockRepo{chunks: corpus(t, 0.9, 0.8, 0.7, 0.6, 0.5)}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}})

	scored, err := svc.Retrieve(context.Background(), "query", 2, 0.3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(scored))
	}
	if scored[0].ChunkID != domain.ChunkID("doc", 0) {
		t.Errorf("best match = %s", scored[0].ChunkID)
	}
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("should not be called")}
	svc := newTestService(&mockRepo{}, embedder)

	scored, err := svc.Retrieve(context.Background(), "query", 3, 0.3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("expected no matches, got %d", len(scored))
	}
}

func TestRetrieve_ZeroQueryVector(t *testing.T) {
	repo := &mockRepo{chunks: corpus(t, 0.9)}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{0, 0}})

	scored, err := svc.Retrieve(context.Background(), "query", 3, 0.3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("zero query vector must match nothing, got %d", len(scored))
	}
}

func TestRetrieve_DefaultsApplied(t *testing.T) {
	repo := &mockRepo{chunks: corpus(t, 0.9, 0.8, 0.7, 0.6)}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}})

	// topK=0 and threshold out of range fall back to 3 and 0.3.
	scored, err := svc.Retrieve(context.Background(), "query", 0, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(scored) != 3 {
		t.Errorf("expected default topK of 3, got %d", len(scored))
	}
}

func TestRetrieve_RepoError(t *testing.T) {
	repo := &mockRepo{err: errors.New("disk gone")}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}})

	if _, err := svc.Retrieve(context.Background(), "query", 3, 0.3); err == nil {
		t.Fatal("expected error from repository")
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	repo := &mockRepo{chunks: corpus(t, 0.9)}
	svc := newTestService(repo, &mockEmbedder{err: domain.ErrEmbeddingProviderError})

	_, err := svc.Retrieve(context.Background(), "query", 3, 0.3)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestHasRelevantContext(t *testing.T) {
	repo := &mockRepo{chunks: corpus(t, 0.9)}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}})
	ctx := context.Background()

	ok, err := svc.HasRelevantContext(ctx, "query")
	if err != nil {
		t.Fatalf("HasRelevantContext failed: %v", err)
	}
	if !ok {
		t.Error("expected relevant context")
	}

	svc = newTestService(&mockRepo{chunks: corpus(t, 0.1)}, &mockEmbedder{vec: []float32{1, 0}})
	ok, err = svc.HasRelevantContext(ctx, "query")
	if err != nil {
		t.Fatalf("HasRelevantContext failed: %v", err)
	}
	if ok {
		t.Error("expected no relevant context below threshold")
	}
}
