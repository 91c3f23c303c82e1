// Package chi is the HTTP API: document management, retrieval search,
// grounded chat, health, and metrics.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
	chatuc "github.com/harvali/docchat/internal/usecase/chat"
	healthuc "github.com/harvali/docchat/internal/usecase/health"
	ingestuc "github.com/harvali/docchat/internal/usecase/ingest"
	retrievaluc "github.com/harvali/docchat/internal/usecase/retrieval"
	"github.com/harvali/docchat/internal/version"
)

// maxUploadBytes caps multipart uploads at 50 MB.
const maxUploadBytes = 50 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	ingest        *ingestuc.Service
	retrieval     *retrievaluc.Service
	chat          *chatuc.Service
	health        *healthuc.Service
	docsDir       string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. docsDir is where original uploads
// are stored.
func NewServer(
	ingest *ingestuc.Service,
	retrieval *retrievaluc.Service,
	chat *chatuc.Service,
	health *healthuc.Service,
	docsDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:    ingest,
		retrieval: retrieval,
		chat:      chat,
		health:    health,
		docsDir:   docsDir,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		unsupportedFormatHandler,
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, codeEmptyDocument),
		sentinelHandler(domain.ErrExtractionFailed, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrCollaboratorUnavailable, http.StatusServiceUnavailable, codeModelHostUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrChatProviderError, http.StatusBadGateway, codeChatProviderError),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Root)
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", s.UploadDocument)
			r.Get("/", s.ListDocuments)
			r.Get("/stats", s.Stats)
			r.Post("/reindex", s.Reindex)
			r.Delete("/{documentID}", s.DeleteDocument)
		})
		r.Post("/search", s.Search)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", s.Chat)
			r.Get("/{conversationID}", s.GetConversation)
			r.Delete("/{conversationID}", s.DeleteConversation)
		})
	})
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service: "docchat",
		Version: version.Version,
		Status:  "running",
	})
}

// UploadDocument handles POST /api/documents/upload. The file arrives as
// multipart field "file"; ?force=true re-ingests known content.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "upload has no usable filename")
		return
	}

	if domain.KindOfPath(filename) == domain.KindUnknown {
		s.handleDomainError(w, &domain.UnsupportedFormatError{
			Ext:       strings.ToLower(filepath.Ext(filename)),
			Supported: domain.SupportedExtensions(),
		})
		return
	}

	path := filepath.Join(s.docsDir, filename)
	if err := saveUpload(path, file); err != nil {
		s.logger.Error("Failed to store upload", zap.String("filename", filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "failed to store upload")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	result, err := s.ingest.Ingest(r.Context(), path, force)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, uploadResponse{
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
		Created:    result.Created,
	})
}

// ListDocuments handles GET /api/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	metas := s.ingest.List()
	items := make([]documentItem, len(metas))
	for i, meta := range metas {
		items[i] = documentToItem(meta)
	}
	writeJSON(w, http.StatusOK, documentListResponse{Documents: items})
}

// Stats handles GET /api/documents/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats := s.ingest.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Documents:      stats.Documents,
		Chunks:         stats.Chunks,
		TotalBytes:     stats.TotalBytes,
		TotalMegabytes: stats.TotalMegabytes,
	})
}

// DeleteDocument handles DELETE /api/documents/{documentID}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if err := s.ingest.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /api/documents/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingest.ReindexAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reindexResponse{
		Indexed: result.Indexed,
		Failed:  result.Failed,
	})
}

// Search handles POST /api/search: a retrieval preview without the chat
// model.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}

	// Out-of-range values fall back to configured defaults downstream.
	threshold := 2.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	scored, err := s.retrieval.Retrieve(r.Context(), req.Query, req.TopK, threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]searchResultItem, len(scored))
	for i, c := range scored {
		results[i] = searchResultItem{
			ChunkID:    c.ChunkID,
			Content:    c.Content,
			Source:     c.Source,
			Similarity: c.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// Chat handles POST /api/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message is required")
		return
	}

	answer, err := s.chat.Ask(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: answer.ConversationID,
		Reply:          answer.Reply,
		Sources:        answer.Sources,
	})
}

// GetConversation handles GET /api/chat/{conversationID}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	history, ok := s.chat.History(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeBadRequest, "conversation not found")
		return
	}

	messages := make([]chatMessageItem, len(history))
	for i, m := range history {
		messages[i] = chatMessageItem{Role: m.Role, Content: m.Content}
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		ConversationID: id,
		Messages:       messages,
	})
}

// DeleteConversation handles DELETE /api/chat/{conversationID}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	s.chat.Clear(chi.URLParam(r, "conversationID"))
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToResponse(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// saveUpload streams the multipart file to disk.
func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnsupportedFormat,
		domain.ErrEmptyDocument,
		domain.ErrExtractionFailed,
		domain.ErrDocumentNotFound,
		domain.ErrCollaboratorUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrChatProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// unsupportedFormatHandler handles ErrUnsupportedFormat with the supported
// extension list in the response.
func unsupportedFormatHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		return false
	}
	var ufe *domain.UnsupportedFormatError
	if errors.As(err, &ufe) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:             codeUnsupportedFormat,
			Message:          ufe.Error(),
			SupportedFormats: ufe.Supported,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, codeUnsupportedFormat, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
