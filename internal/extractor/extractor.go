// Package extractor converts raw files into plain text, dispatching on the
// detected file kind. OCR and vision description are optional collaborators
// injected at construction; their failures degrade to partial output and
// never abort an extraction.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

// OCRReader reads text out of an image, best-effort.
type OCRReader interface {
	ReadText(ctx context.Context, imagePath string) (string, error)
}

// VisionDescriber produces a natural-language description of an image.
type VisionDescriber interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// Extractor converts files to plain text by kind. A nil ocr or vision
// collaborator means the capability is disabled; callers branch on the
// resolved capability, not on runtime probing.
type Extractor struct {
	ocr    OCRReader
	vision VisionDescriber
	logger *zap.Logger
}

// New creates an Extractor. ocr and vision may be nil.
func New(ocr OCRReader, vision VisionDescriber, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{ocr: ocr, vision: vision, logger: logger}
}

// Extract converts the file at path into plain text. Unknown extensions fail
// with ErrUnsupportedFormat naming the supported set; unreadable primary
// content fails with ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	switch domain.KindOfPath(path) {
	case domain.KindPDF:
		return e.extractPDF(ctx, path)
	case domain.KindWord:
		return extractWord(path)
	case domain.KindSpreadsheet:
		return extractSpreadsheet(path)
	case domain.KindText:
		return extractText(path)
	case domain.KindImage:
		return e.extractImage(ctx, path)
	default:
		ext := strings.ToLower(filepath.Ext(path))
		return "", domain.NewUnsupportedFormat(ext, domain.SupportedExtensions())
	}
}

// runOCR invokes the OCR collaborator, swallowing failures. Returns "" when
// OCR is disabled or produced nothing.
func (e *Extractor) runOCR(ctx context.Context, imagePath string) string {
	if e.ocr == nil {
		return ""
	}
	text, err := e.ocr.ReadText(ctx, imagePath)
	if err != nil {
		e.logger.Warn("OCR failed, skipping enrichment",
			zap.String("image", filepath.Base(imagePath)), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// runVision invokes the vision collaborator, swallowing failures. Returns ""
// when vision is disabled or produced nothing.
func (e *Extractor) runVision(ctx context.Context, imagePath string) string {
	if e.vision == nil {
		return ""
	}
	desc, err := e.vision.Describe(ctx, imagePath)
	if err != nil {
		e.logger.Warn("vision description failed, skipping enrichment",
			zap.String("image", filepath.Base(imagePath)), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(desc)
}

// labeledSection formats enrichment output under a delimited header.
func labeledSection(label, text string) string {
	return fmt.Sprintf("--- %s ---\n%s", label, text)
}
