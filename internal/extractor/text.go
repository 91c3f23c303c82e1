package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/harvali/docchat/internal/domain"
)

// extractText reads a plain-text file verbatim. Invalid UTF-8 is a fatal
// extraction error, not something to transliterate around.
func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read txt %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("txt %s is not valid UTF-8: %w", filepath.Base(path), domain.ErrExtractionFailed)
	}
	return string(data), nil
}
