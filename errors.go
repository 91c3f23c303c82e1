package docchat

import "github.com/harvali/docchat/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnsupportedFormat       = domain.ErrUnsupportedFormat
	ErrExtractionFailed        = domain.ErrExtractionFailed
	ErrEmptyDocument           = domain.ErrEmptyDocument
	ErrDocumentNotFound        = domain.ErrDocumentNotFound
	ErrCollaboratorUnavailable = domain.ErrCollaboratorUnavailable
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrChatProviderError       = domain.ErrChatProviderError
)
