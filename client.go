package docchat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/chunker"
	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/extractor"
	"github.com/harvali/docchat/internal/metrics"
	"github.com/harvali/docchat/internal/repository/embcache"
	indexrepo "github.com/harvali/docchat/internal/repository/index"
	ocrTransport "github.com/harvali/docchat/internal/transport/ocr"
	"github.com/harvali/docchat/internal/transport/ollama"
	chatuc "github.com/harvali/docchat/internal/usecase/chat"
	healthuc "github.com/harvali/docchat/internal/usecase/health"
	ingestuc "github.com/harvali/docchat/internal/usecase/ingest"
	retrievaluc "github.com/harvali/docchat/internal/usecase/retrieval"
)

// Client is the embedded docchat engine.
type Client struct {
	docsDir   string
	store     *indexrepo.Store
	ingestSvc *ingestuc.Service
	retrieval *retrievaluc.Service
	chatSvc   *chatuc.Service
	healthSvc *healthuc.Service
	obs       *observer
}

// Open initializes the engine: creates the data directories, loads the
// persisted index, and wires the model-host clients.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dataDir:        "data",
		modelHost:      "http://localhost:11434/v1",
		apiKey:         "ollama",
		embeddingModel: "nomic-embed-text",
		chatModel:      "llama3.2",
		chunkSize:      500,
		overlap:        50,
		topK:           3,
		threshold:      0.3,
		cacheTTL:       5 * time.Minute,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	docsDir := filepath.Join(cfg.dataDir, "documents")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("docchat: create documents directory: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()

	// Internal services log through zap; the embedded client keeps its own
	// slog-based observer instead.
	internalLog := zap.NewNop()

	store, err := indexrepo.Open(&indexrepo.Config{
		Dir:      filepath.Join(cfg.dataDir, "embeddings"),
		ModelTag: cfg.embeddingModel,
		CacheTTL: cfg.cacheTTL,
		Logger:   internalLog,
	})
	if err != nil {
		return nil, fmt.Errorf("docchat: open index: %w", err)
	}

	chk, err := chunker.New(cfg.chunkSize, cfg.overlap)
	if err != nil {
		return nil, fmt.Errorf("docchat: %w", err)
	}

	ext, err := buildExtractor(cfg, internalLog)
	if err != nil {
		return nil, err
	}

	embedder := buildClientEmbedder(cfg, internalLog)

	var completer chatuc.Completer
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	} else {
		completer = ollama.NewChatClient(&ollama.ChatConfig{
			BaseURL:     cfg.modelHost,
			APIKey:      cfg.apiKey,
			Model:       cfg.chatModel,
			ChatTimeout: cfg.chatTimeout,
			Logger:      internalLog,
		})
	}

	ingestSvc := ingestuc.New(ext, chk, embedder, store, docsDir, internalLog)
	retrievalSvc := retrievaluc.New(store, embedder, cfg.topK, cfg.threshold, internalLog)
	chatSvc := chatuc.New(retrievalSvc, store, completer, internalLog)
	healthSvc := healthuc.New(store, asHealthChecker(embedder), completer)

	return &Client{
		docsDir:   docsDir,
		store:     store,
		ingestSvc: ingestSvc,
		retrieval: retrievalSvc,
		chatSvc:   chatSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

func buildExtractor(cfg *clientConfig, logger *zap.Logger) (*extractor.Extractor, error) {
	var ocrReader extractor.OCRReader
	if len(cfg.ocrLanguages) > 0 {
		engine := ocrTransport.New(cfg.ocrLanguages, logger)
		if err := engine.Probe(); err != nil {
			return nil, fmt.Errorf("docchat: ocr requested but unavailable: %w", err)
		}
		ocrReader = engine
	}

	var vision extractor.VisionDescriber
	if cfg.visionModel != "" {
		vision = ollama.NewVision(&ollama.VisionConfig{
			BaseURL: cfg.modelHost,
			APIKey:  cfg.apiKey,
			Model:   cfg.visionModel,
			Logger:  logger,
		})
	}

	return extractor.New(ocrReader, vision, logger), nil
}

func buildClientEmbedder(cfg *clientConfig, logger *zap.Logger) domain.Embedder {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}
	}

	base := ollama.NewEmbedder(&ollama.EmbedderConfig{
		BaseURL:    cfg.modelHost,
		APIKey:     cfg.apiKey,
		Model:      cfg.embeddingModel,
		Dimensions: cfg.dimensions,
		Logger:     logger,
	})

	cached, err := embcache.New(base, filepath.Join(cfg.dataDir, "emb_cache"),
		cfg.embeddingModel, metrics.EmbeddingCacheTotal, logger)
	if err != nil {
		return base
	}
	return cached
}

// AddFile ingests one file into the index. The file is staged under the
// data directory so Reindex can find it later. Identical content is
// skipped unless force is set.
func (c *Client) AddFile(ctx context.Context, path string, force bool) (info IngestInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add_file", start, err) }()

	staged, err := c.stageFile(path)
	if err != nil {
		return IngestInfo{}, err
	}

	result, err := c.ingestSvc.Ingest(ctx, staged, force)
	if err != nil {
		return IngestInfo{}, err
	}
	return IngestInfo{
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
		Created:    result.Created,
	}, nil
}

// Close flushes the index registry to disk.
func (c *Client) Close() error {
	return c.store.Close()
}

// stageFile copies path into the documents directory. A file already
// inside it is used in place.
func (c *Client) stageFile(path string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("docchat: resolve path: %w", err)
	}
	docsDir, err := filepath.Abs(c.docsDir)
	if err != nil {
		return "", fmt.Errorf("docchat: resolve documents directory: %w", err)
	}
	if dir == docsDir {
		return path, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("docchat: read file: %w", err)
	}
	staged := filepath.Join(c.docsDir, filepath.Base(path))
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		return "", fmt.Errorf("docchat: stage file: %w", err)
	}
	return staged, nil
}

// Documents lists all indexed documents, most recent first.
func (c *Client) Documents() []DocumentInfo {
	metas := c.ingestSvc.List()
	out := make([]DocumentInfo, len(metas))
	for i, m := range metas {
		out[i] = DocumentInfo{
			ID:         m.ID,
			Filename:   m.Filename,
			UploadedAt: m.UploadedAt,
			FileSize:   m.FileSize,
			ChunkCount: m.ChunkCount,
		}
	}
	return out
}

// DeleteDocument removes a document from the index.
func (c *Client) DeleteDocument(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_document", start, err) }()

	return c.ingestSvc.Delete(ctx, id)
}

// Stats summarizes the corpus.
func (c *Client) Stats() IndexStats {
	s := c.ingestSvc.Stats()
	return IndexStats{
		Documents:      s.Documents,
		Chunks:         s.Chunks,
		TotalBytes:     s.TotalBytes,
		TotalMegabytes: s.TotalMegabytes,
	}
}

// Reindex re-ingests every stored file with the current chunking and
// embedding configuration.
func (c *Client) Reindex(ctx context.Context) (info ReindexInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reindex", start, err) }()

	result, err := c.ingestSvc.ReindexAll(ctx)
	if err != nil {
		return ReindexInfo{}, err
	}
	return ReindexInfo{Indexed: result.Indexed, Failed: result.Failed}, nil
}

// Search returns the chunks most similar to the query. topK <= 0 and
// out-of-range thresholds use the configured defaults.
func (c *Client) Search(ctx context.Context, query string, topK int, threshold float64) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	scored, err := c.retrieval.Retrieve(ctx, query, topK, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, len(scored))
	for i, s := range scored {
		out[i] = SearchResult{
			ChunkID:    s.ChunkID,
			Content:    s.Content,
			Source:     s.Source,
			Similarity: s.Similarity,
		}
	}
	return out, nil
}

// Ask answers a question grounded in the corpus. An empty conversationID
// starts a new conversation.
func (c *Client) Ask(ctx context.Context, conversationID, question string) (answer Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	a, err := c.chatSvc.Ask(ctx, conversationID, question)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		ConversationID: a.ConversationID,
		Reply:          a.Reply,
		Sources:        a.Sources,
	}, nil
}

// Conversation returns a conversation transcript.
func (c *Client) Conversation(conversationID string) ([]Message, bool) {
	history, ok := c.chatSvc.History(conversationID)
	if !ok {
		return nil, false
	}
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out, true
}

// ClearConversation forgets a conversation.
func (c *Client) ClearConversation(conversationID string) {
	c.chatSvc.Clear(conversationID)
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Ping checks index storage accessibility.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// embedderAdapter wraps a public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// completerAdapter wraps a public Completer to satisfy the chat contract.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	converted := make([]Message, len(messages))
	for i, m := range messages {
		converted[i] = Message{Role: m.Role, Content: m.Content}
	}
	return a.inner.Complete(ctx, converted)
}

func (a *completerAdapter) CheckConnection(ctx context.Context) error {
	return a.inner.CheckConnection(ctx)
}

// asHealthChecker exposes the embedder's health check when it has one.
func asHealthChecker(e domain.Embedder) healthuc.EmbeddingChecker {
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
