package extractor

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

// minPDFTextLen is the minimum extracted length below which a PDF is treated
// as image-dominant and its pages are rasterized for OCR/vision.
const minPDFTextLen = 50

// extractPDF concatenates per-page text. Image-dominant PDFs fall through to
// page rasterization with best-effort OCR and vision enrichment.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	text, err := extractPDFText(path)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}

	if len(strings.TrimSpace(text)) >= minPDFTextLen {
		return text, nil
	}
	if e.ocr == nil && e.vision == nil {
		// Nothing to enrich with; return whatever text there was.
		return text, nil
	}

	enriched, err := e.enrichScannedPDF(ctx, path)
	if err != nil {
		// Rasterization failure is an enrichment failure, not a fatal one:
		// the primary bytes were already readable above.
		e.logger.Warn("pdf rasterization failed, skipping enrichment",
			zap.String("file", filepath.Base(path)), zap.Error(err))
		return text, nil
	}
	if enriched != "" {
		if text != "" {
			text += "\n"
		}
		text += enriched
	}
	return text, nil
}

// extractPDFText reads the embedded text layer of every page.
func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single unparseable page should not lose the rest.
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// enrichScannedPDF rasterizes each page to a temporary PNG and runs the
// enabled collaborators on it. Per-page failures are isolated; temporary
// images are removed regardless of outcome.
func (e *Extractor) enrichScannedPDF(ctx context.Context, path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open pdf for rasterization: %w", err)
	}
	defer doc.Close()

	tmpDir, err := os.MkdirTemp("", "docchat-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var sections []string
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		imgPath, err := rasterizePage(doc, n, tmpDir)
		if err != nil {
			e.logger.Warn("failed to rasterize pdf page",
				zap.String("file", filepath.Base(path)), zap.Int("page", n+1), zap.Error(err))
			continue
		}

		if ocrText := e.runOCR(ctx, imgPath); ocrText != "" {
			sections = append(sections, labeledSection(fmt.Sprintf("OCR (page %d)", n+1), ocrText))
		}
		if desc := e.runVision(ctx, imgPath); desc != "" {
			sections = append(sections, labeledSection(fmt.Sprintf("Image description (page %d)", n+1), desc))
		}
	}

	return strings.Join(sections, "\n\n"), nil
}

// rasterizePage renders page n into tmpDir and returns the PNG path.
func rasterizePage(doc *fitz.Document, n int, tmpDir string) (string, error) {
	img, err := doc.Image(n)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", n+1, err)
	}

	imgPath := filepath.Join(tmpDir, fmt.Sprintf("page_%d.png", n+1))
	f, err := os.Create(imgPath)
	if err != nil {
		return "", fmt.Errorf("create page image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encode page image: %w", err)
	}
	return imgPath, nil
}
