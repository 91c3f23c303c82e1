package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/chunker"
	"github.com/harvali/docchat/internal/config"
	"github.com/harvali/docchat/internal/domain"
	"github.com/harvali/docchat/internal/extractor"
	logpkg "github.com/harvali/docchat/internal/logger"
	"github.com/harvali/docchat/internal/metrics"
	"github.com/harvali/docchat/internal/repository/embcache"
	indexrepo "github.com/harvali/docchat/internal/repository/index"
	chiTransport "github.com/harvali/docchat/internal/transport/chi"
	ocrTransport "github.com/harvali/docchat/internal/transport/ocr"
	"github.com/harvali/docchat/internal/transport/ollama"
	chatuc "github.com/harvali/docchat/internal/usecase/chat"
	healthuc "github.com/harvali/docchat/internal/usecase/health"
	ingestuc "github.com/harvali/docchat/internal/usecase/ingest"
	retrievaluc "github.com/harvali/docchat/internal/usecase/retrieval"
	"github.com/harvali/docchat/internal/version"
)

func main() {
	// Optional .env for local development; real env vars win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docchat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model_host", cfg.Ollama.BaseURL),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("chat_model", cfg.Ollama.ChatModel),
	)

	if err := os.MkdirAll(cfg.Storage.DocumentsDir, 0o755); err != nil {
		logger.Fatal("Failed to create documents directory", zap.Error(err))
	}

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Persistent index
	store, err := indexrepo.Open(&indexrepo.Config{
		Dir:      cfg.Storage.EmbeddingsDir,
		ModelTag: cfg.Embedding.Model,
		CacheTTL: time.Duration(cfg.Retrieval.CacheTTLSec) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Failed to open index", zap.Error(err))
	}

	// Optional collaborators — resolved once at startup
	var ocrReader extractor.OCRReader
	if cfg.OCR.Enabled {
		engine := ocrTransport.New(cfg.OCR.Languages, logger)
		if err := engine.Probe(); err != nil {
			logger.Warn("OCR unavailable, continuing without it", zap.Error(err))
		} else {
			ocrReader = engine
			logger.Info("OCR enabled", zap.Strings("languages", cfg.OCR.Languages))
		}
	}

	var visionDescriber extractor.VisionDescriber
	if cfg.Vision.Enabled {
		visionDescriber = ollama.NewVision(&ollama.VisionConfig{
			BaseURL: cfg.Ollama.BaseURL,
			APIKey:  cfg.Ollama.APIKey,
			Model:   cfg.Vision.Model,
			Prompt:  cfg.Vision.Prompt,
			Timeout: time.Duration(cfg.Vision.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		logger.Info("Vision enabled", zap.String("model", cfg.Vision.Model))
	}

	ext := extractor.New(ocrReader, visionDescriber, logger)

	chk, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	// Embedder chain — composition root
	docEmbedder := buildEmbedder(cfg, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, logger)

	chatClient := ollama.NewChatClient(&ollama.ChatConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		APIKey:         cfg.Ollama.APIKey,
		Model:          cfg.Ollama.ChatModel,
		ChatTimeout:    time.Duration(cfg.Ollama.ChatTimeoutSec) * time.Second,
		ConnectTimeout: time.Duration(cfg.Ollama.ConnectTimeoutSec) * time.Second,
		Logger:         logger,
	})

	// Use case services
	ingestSvc := ingestuc.New(ext, chk, docEmbedder, store, cfg.Storage.DocumentsDir, logger)
	retrievalSvc := retrievaluc.New(store, queryEmbedder, cfg.Retrieval.TopK, cfg.Retrieval.Threshold, logger)
	chatSvc := chatuc.New(retrievalSvc, store, chatClient, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder), chatClient)

	server := chiTransport.NewServer(ingestSvc, retrievalSvc, chatSvc, healthSvc, cfg.Storage.DocumentsDir, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	if err := store.Close(); err != nil {
		logger.Error("Error closing index store", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: Ollama -> Cached -> Instruction
func buildEmbedder(cfg config.Config, instruction string, logger *zap.Logger) domain.Embedder {
	base := ollama.NewEmbedder(&ollama.EmbedderConfig{
		BaseURL:    cfg.Ollama.BaseURL,
		APIKey:     cfg.Ollama.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Storage.EmbCacheDir != "" {
		cached, err := embcache.New(base, cfg.Storage.EmbCacheDir, cfg.Embedding.Model,
			metrics.EmbeddingCacheTotal, logger)
		if err != nil {
			logger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			embedder = cached
		}
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
