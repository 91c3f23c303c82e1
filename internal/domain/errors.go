package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat signals a file extension outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed signals corrupt or unreadable primary content.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyDocument signals a document with no extractable text.
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCollaboratorUnavailable signals an unreachable external model.
	ErrCollaboratorUnavailable = errors.New("model collaborator unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrChatProviderError signals a chat completion failure.
	ErrChatProviderError = errors.New("chat provider error")
	// ErrInvalidChunkConfig signals chunk/overlap settings that cannot advance.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)

// UnsupportedFormatError wraps ErrUnsupportedFormat with the offending
// extension and the enumerated supported set.
type UnsupportedFormatError struct {
	Ext       string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s %q (supported: %s)",
		ErrUnsupportedFormat.Error(), e.Ext, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// NewUnsupportedFormat creates an unsupported format error.
func NewUnsupportedFormat(ext string, supported []string) error {
	return &UnsupportedFormatError{Ext: ext, Supported: supported}
}
