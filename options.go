package docchat

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dataDir string

	modelHost      string
	apiKey         string
	embeddingModel string
	dimensions     int
	chatModel      string
	chatTimeout    time.Duration

	chunkSize int
	overlap   int

	topK      int
	threshold float64
	cacheTTL  time.Duration

	ocrLanguages []string
	visionModel  string

	embedder  Embedder
	completer Completer

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithDataDir sets the directory holding uploads, the index, and the
// embedding cache. Default: "data".
func WithDataDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dataDir = dir
	})
}

// WithModelHost points the client at an OpenAI-compatible model host.
// Default: http://localhost:11434/v1 (local Ollama).
func WithModelHost(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.modelHost = baseURL
	})
}

// WithAPIKey sets the model host API key. Ollama ignores it.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithEmbeddingModel sets the embedding model name and optional output
// dimensions (0 keeps the model's native size).
// Default: nomic-embed-text.
func WithEmbeddingModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.dimensions = dimensions
	})
}

// WithChatModel sets the chat model name. Default: llama3.2.
func WithChatModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatModel = model
	})
}

// WithChatTimeout bounds a single chat completion. Default: 120s.
func WithChatTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatTimeout = d
	})
}

// WithChunking sets the word-window chunk size and overlap.
// Defaults: 500 words, 50 overlap.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.overlap = overlap
	})
}

// WithRetrieval sets the default result count and relevance threshold.
// Defaults: topK=3, threshold=0.3.
func WithRetrieval(topK int, threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.threshold = threshold
	})
}

// WithOCR enables Tesseract OCR for images and scanned PDFs with the given
// languages. Requires Tesseract installed with matching language data.
func WithOCR(languages ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ocrLanguages = languages
	})
}

// WithVision enables image description through a vision-capable model on
// the model host (e.g. llava).
func WithVision(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.visionModel = model
	})
}

// WithEmbedder replaces the default model-host embedder.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter replaces the default model-host chat client.
func WithCompleter(cc Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cc
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
