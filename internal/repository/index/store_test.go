package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{
		Dir:      t.TempDir(),
		ModelTag: "test-model",
		CacheTTL: 5 * time.Minute,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func testDocument(id, filename string, uploaded time.Time, contents ...string) (domain.DocumentMeta, []domain.Chunk) {
	chunks := make([]domain.Chunk, len(contents))
	chunkIDs := make([]string, len(contents))
	for i, content := range contents {
		chunkID := domain.ChunkID(id, i)
		chunks[i] = domain.Chunk{
			ID:         chunkID,
			DocumentID: id,
			Source:     filename,
			Content:    content,
			Index:      i,
			Embedding:  []float32{float32(i), 0.5, -0.25},
		}
		chunkIDs[i] = chunkID
	}
	meta := domain.DocumentMeta{
		ID:         id,
		Filename:   filename,
		UploadedAt: uploaded,
		FileSize:   1024,
		ChunkCount: len(chunks),
		ChunkIDs:   chunkIDs,
	}
	return meta, chunks
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, chunks := testDocument("doc1", "report.pdf", time.Now(), "first chunk", "second chunk")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	if !s.Exists("doc1") {
		t.Error("expected document to exist")
	}
	if s.Exists("other") {
		t.Error("unexpected document reported as existing")
	}

	got, err := s.Get("doc1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Filename != "report.pdf" {
		t.Errorf("filename = %q, expected report.pdf", got.Filename)
	}
	if got.ChunkCount != 2 {
		t.Errorf("chunk count = %d, expected 2", got.ChunkCount)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestStore_AllChunksRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, chunks := testDocument("doc1", "notes.txt", time.Now(), "alpha", "beta", "gamma")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	got, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}

	byID := make(map[string]domain.Chunk, len(got))
	for _, c := range got {
		byID[c.ID] = c
	}
	want := domain.ChunkID("doc1", 1)
	c, ok := byID[want]
	if !ok {
		t.Fatalf("chunk %s missing from materialized set", want)
	}
	if c.Content != "beta" {
		t.Errorf("content = %q, expected beta", c.Content)
	}
	if len(c.Embedding) != 3 || c.Embedding[0] != 1 {
		t.Errorf("embedding round-trip mismatch: %v", c.Embedding)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(&Config{Dir: dir, ModelTag: "test-model", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	meta, chunks := testDocument("doc1", "report.pdf", time.Now(), "persisted")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	reopened, err := Open(&Config{Dir: dir, ModelTag: "test-model", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !reopened.Exists("doc1") {
		t.Fatal("document lost across reopen")
	}
	got, err := reopened.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks after reopen failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "persisted" {
		t.Errorf("unexpected chunks after reopen: %+v", got)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, chunks := testDocument("doc1", "a.txt", time.Now(), "one", "two")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	if err := s.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists("doc1") {
		t.Error("document still exists after delete")
	}
	if _, err := os.Stat(filepath.Join(s.dir, "doc1_chunks.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("chunk file survived delete")
	}
	if _, err := os.Stat(s.vecPath(domain.ChunkID("doc1", 0))); !errors.Is(err, os.ErrNotExist) {
		t.Error("vector file survived delete")
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestStore_DeleteToleratesMissingVectorFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, chunks := testDocument("doc1", "a.txt", time.Now(), "one")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if err := os.Remove(s.vecPath(domain.ChunkID("doc1", 0))); err != nil {
		t.Fatalf("remove vec file: %v", err)
	}

	if err := s.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("Delete should tolerate missing vector files, got %v", err)
	}
}

func TestStore_ListOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	older, olderChunks := testDocument("older", "older.txt", now.Add(-time.Hour), "x")
	newer, newerChunks := testDocument("newer", "newer.txt", now, "y")
	undated, undatedChunks := testDocument("undated", "undated.txt", time.Time{}, "z")

	for _, doc := range []struct {
		meta   domain.DocumentMeta
		chunks []domain.Chunk
	}{{undated, undatedChunks}, {older, olderChunks}, {newer, newerChunks}} {
		if err := s.SaveDocument(ctx, doc.meta, doc.chunks); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(list))
	}
	if list[0].ID != "newer" || list[1].ID != "older" || list[2].ID != "undated" {
		t.Errorf("unexpected order: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, aChunks := testDocument("a", "a.txt", time.Now(), "one", "two")
	b, bChunks := testDocument("b", "b.txt", time.Now(), "three")
	for _, doc := range []struct {
		meta   domain.DocumentMeta
		chunks []domain.Chunk
	}{{a, aChunks}, {b, bChunks}} {
		if err := s.SaveDocument(ctx, doc.meta, doc.chunks); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
	}

	stats := s.Stats()
	if stats.Documents != 2 {
		t.Errorf("documents = %d, expected 2", stats.Documents)
	}
	if stats.Chunks != 3 {
		t.Errorf("chunks = %d, expected 3", stats.Chunks)
	}
	if stats.TotalBytes != 2048 {
		t.Errorf("total bytes = %d, expected 2048", stats.TotalBytes)
	}
}

func TestStore_CacheInvalidatedOnWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, firstChunks := testDocument("first", "first.txt", time.Now(), "hello")
	if err := s.SaveDocument(ctx, first, firstChunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	// Prime the cache.
	got, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}

	second, secondChunks := testDocument("second", "second.txt", time.Now(), "world")
	if err := s.SaveDocument(ctx, second, secondChunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	got, err = s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("cache served stale data: got %d chunks, expected 2", len(got))
	}

	if err := s.Delete(ctx, "first"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err = s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("cache served stale data after delete: got %d chunks, expected 1", len(got))
	}
}

func TestStore_CorruptVectorSkipped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, chunks := testDocument("doc1", "a.txt", time.Now(), "good", "bad")
	if err := s.SaveDocument(ctx, meta, chunks); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	// Truncate one vector to a non-multiple-of-4 length.
	badPath := s.vecPath(domain.ChunkID("doc1", 1))
	if err := os.WriteFile(badPath, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("corrupt vec file: %v", err)
	}

	got, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected corrupt chunk skipped, got %d chunks", len(got))
	}
	if got[0].Content != "good" {
		t.Errorf("surviving chunk = %q, expected good", got[0].Content)
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.125, 0}
	got, err := bytesToVector(vectorToBytes(vec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, got[i], vec[i])
		}
	}
}
