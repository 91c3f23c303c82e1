package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// extractImage runs the enabled collaborators over a standalone image.
// Producing nothing is a valid outcome, not an error: the placeholder keeps
// the document ingestable so a later reindex with more capabilities can
// improve on it.
func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	var sections []string

	if ocrText := e.runOCR(ctx, path); ocrText != "" {
		sections = append(sections, labeledSection("OCR", ocrText))
	}
	if desc := e.runVision(ctx, path); desc != "" {
		sections = append(sections, labeledSection("Image description", desc))
	}

	if len(sections) == 0 {
		return fmt.Sprintf("No text content could be extracted from image %s.", filepath.Base(path)), nil
	}
	return strings.Join(sections, "\n\n"), nil
}
