package chi

import (
	"time"

	"github.com/harvali/docchat/internal/domain"
	healthuc "github.com/harvali/docchat/internal/usecase/health"
)

// errorCode is a machine-readable error identifier in API responses.
type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeUnsupportedFormat      errorCode = "unsupported_format"
	codeEmptyDocument          errorCode = "empty_document"
	codeExtractionFailed       errorCode = "extraction_failed"
	codeDocumentNotFound       errorCode = "document_not_found"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeChatProviderError      errorCode = "chat_provider_error"
	codeModelHostUnavailable   errorCode = "model_host_unavailable"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
	// SupportedFormats accompanies unsupported_format errors.
	SupportedFormats []string `json:"supported_formats,omitempty"`
}

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Created    bool   `json:"created"`
}

type documentItem struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UploadedAt string `json:"uploaded_at,omitempty"`
	FileSize   int64  `json:"file_size"`
	ChunkCount int    `json:"chunk_count"`
}

type documentListResponse struct {
	Documents []documentItem `json:"documents"`
}

type statsResponse struct {
	Documents      int     `json:"documents"`
	Chunks         int     `json:"chunks"`
	TotalBytes     int64   `json:"total_bytes"`
	TotalMegabytes float64 `json:"total_megabytes"`
}

type reindexResponse struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type searchResultItem struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	ConversationID string   `json:"conversation_id"`
	Reply          string   `json:"reply"`
	Sources        []string `json:"sources,omitempty"`
}

type chatMessageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type conversationResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []chatMessageItem `json:"messages"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type rootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func documentToItem(meta domain.DocumentMeta) documentItem {
	item := documentItem{
		ID:         meta.ID,
		Filename:   meta.Filename,
		FileSize:   meta.FileSize,
		ChunkCount: meta.ChunkCount,
	}
	if !meta.UploadedAt.IsZero() {
		item.UploadedAt = meta.UploadedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func healthToResponse(report healthuc.Report) healthResponse {
	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}
	return healthResponse{
		Status: string(report.Status),
		Checks: checks,
	}
}
