package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type mockExtractor struct {
	text  string
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockChunker struct{}

func (mockChunker) Split(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	// One word per chunk keeps assertions simple.
	return fields
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

type mockRepo struct {
	docs      map[string]domain.DocumentMeta
	chunks    map[string][]domain.Chunk
	saveCalls int
	saveErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		docs:   make(map[string]domain.DocumentMeta),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (m *mockRepo) Exists(id string) bool {
	_, ok := m.docs[id]
	return ok
}

func (m *mockRepo) Get(id string) (domain.DocumentMeta, error) {
	meta, ok := m.docs[id]
	if !ok {
		return domain.DocumentMeta{}, domain.ErrDocumentNotFound
	}
	return meta, nil
}

func (m *mockRepo) SaveDocument(_ context.Context, meta domain.DocumentMeta, chunks []domain.Chunk) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[meta.ID] = meta
	m.chunks[meta.ID] = chunks
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *mockRepo) List() []domain.DocumentMeta {
	out := make([]domain.DocumentMeta, 0, len(m.docs))
	for _, meta := range m.docs {
		out = append(out, meta)
	}
	return out
}

func (m *mockRepo) Stats() domain.IndexStats {
	return domain.IndexStats{Documents: len(m.docs)}
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func newTestService(extractor *mockExtractor, embedder *mockEmbedder, repo *mockRepo, docsDir string) *Service {
	return New(extractor, mockChunker{}, embedder, repo, docsDir, zap.NewNop())
}

func TestIngest_CreatesDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "file bytes")

	extractor := &mockExtractor{text: "alpha beta gamma"}
	embedder := &mockEmbedder{}
	repo := newMockRepo()
	svc := newTestService(extractor, embedder, repo, dir)

	result, err := svc.Ingest(context.Background(), path, false)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if !result.Created {
		t.Error("expected Created=true")
	}
	if result.ChunkCount != 3 {
		t.Errorf("chunk count = %d, expected 3", result.ChunkCount)
	}
	if result.Filename != "notes.txt" {
		t.Errorf("filename = %q, expected notes.txt", result.Filename)
	}
	if result.DocumentID != domain.DocumentID([]byte("file bytes")) {
		t.Errorf("document ID should be the content hash, got %s", result.DocumentID)
	}

	chunks := repo.chunks[result.DocumentID]
	if len(chunks) != 3 {
		t.Fatalf("expected 3 stored chunks, got %d", len(chunks))
	}
	if chunks[1].ID != domain.ChunkID(result.DocumentID, 1) {
		t.Errorf("chunk ID = %q", chunks[1].ID)
	}
	if chunks[1].Content != "beta" {
		t.Errorf("chunk content = %q, expected beta", chunks[1].Content)
	}
	if len(chunks[1].Embedding) == 0 {
		t.Error("chunk embedding missing")
	}
	if chunks[1].Source != "notes.txt" {
		t.Errorf("chunk source = %q", chunks[1].Source)
	}
}

func TestIngest_DuplicateSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "identical bytes")

	extractor := &mockExtractor{text: "some words here"}
	embedder := &mockEmbedder{}
	repo := newMockRepo()
	svc := newTestService(extractor, embedder, repo, dir)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, path, false)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	// Same bytes under a different name are still the same document.
	other := writeTestFile(t, dir, "copy.txt", "identical bytes")
	second, err := svc.Ingest(ctx, other, false)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	if second.Created {
		t.Error("expected duplicate to be skipped")
	}
	if second.DocumentID != first.DocumentID {
		t.Error("duplicate should report the existing document ID")
	}
	if repo.saveCalls != 1 {
		t.Errorf("expected 1 save, got %d", repo.saveCalls)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor should not run for duplicates, got %d calls", extractor.calls)
	}
}

func TestIngest_ForceReingests(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "same bytes")

	extractor := &mockExtractor{text: "content words"}
	repo := newMockRepo()
	svc := newTestService(extractor, &mockEmbedder{}, repo, dir)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, path, false); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	result, err := svc.Ingest(ctx, path, true)
	if err != nil {
		t.Fatalf("forced Ingest failed: %v", err)
	}

	if !result.Created {
		t.Error("forced ingest should report Created=true")
	}
	if repo.saveCalls != 2 {
		t.Errorf("expected 2 saves, got %d", repo.saveCalls)
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "blank.txt", "whitespace only on disk")

	extractor := &mockExtractor{text: "   \n\t  "}
	repo := newMockRepo()
	svc := newTestService(extractor, &mockEmbedder{}, repo, dir)

	_, err := svc.Ingest(context.Background(), path, false)
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Error("nothing should be saved for an empty document")
	}
}

func TestIngest_ExtractorError(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "broken.pdf", "not really a pdf")

	extractor := &mockExtractor{err: domain.ErrExtractionFailed}
	repo := newMockRepo()
	svc := newTestService(extractor, &mockEmbedder{}, repo, dir)

	_, err := svc.Ingest(context.Background(), path, false)
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestIngest_EmbedderError(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "bytes")

	extractor := &mockExtractor{text: "words to embed"}
	embedder := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	repo := newMockRepo()
	svc := newTestService(extractor, embedder, repo, dir)

	_, err := svc.Ingest(context.Background(), path, false)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Error("nothing should be saved when embedding fails")
	}
}

func TestDelete_RemovesIndexAndOriginal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "notes.txt", "bytes")

	extractor := &mockExtractor{text: "some text"}
	repo := newMockRepo()
	svc := newTestService(extractor, &mockEmbedder{}, repo, dir)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, path, false)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if err := svc.Delete(ctx, result.DocumentID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if repo.Exists(result.DocumentID) {
		t.Error("document still in index")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("original upload survived delete")
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc := newTestService(&mockExtractor{}, &mockEmbedder{}, newMockRepo(), t.TempDir())

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestReindexAll(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "document a")
	writeTestFile(t, dir, "b.txt", "document b")
	writeTestFile(t, dir, "skip.zzz", "unsupported extension")

	extractor := &mockExtractor{text: "reindexed words"}
	repo := newMockRepo()
	svc := newTestService(extractor, &mockEmbedder{}, repo, dir)

	result, err := svc.ReindexAll(context.Background())
	if err != nil {
		t.Fatalf("ReindexAll failed: %v", err)
	}
	if result.Indexed != 2 {
		t.Errorf("indexed = %d, expected 2", result.Indexed)
	}
	if result.Failed != 0 {
		t.Errorf("failed = %d, expected 0", result.Failed)
	}
	if len(repo.docs) != 2 {
		t.Errorf("expected 2 documents in index, got %d", len(repo.docs))
	}
}

func TestReindexAll_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "document a")

	extractor := &mockExtractor{err: errors.New("extraction blew up")}
	svc := newTestService(extractor, &mockEmbedder{}, newMockRepo(), dir)

	result, err := svc.ReindexAll(context.Background())
	if err != nil {
		t.Fatalf("ReindexAll failed: %v", err)
	}
	if result.Failed != 1 || result.Indexed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}
