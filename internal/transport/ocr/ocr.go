// Package ocr wraps the Tesseract engine for extracting text from images.
//
// Tesseract is an optional collaborator: the engine is probed once at
// startup and the extractor runs without OCR when it is absent.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Engine reads text from image files through Tesseract.
type Engine struct {
	languages []string
	logger    *zap.Logger
}

// New creates an OCR engine for the given language set. An empty set
// defaults to English.
func New(languages []string, logger *zap.Logger) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{languages: languages, logger: logger}
}

// ReadText runs Tesseract over the image at path and returns the
// recognized text. A fresh client per call keeps the engine safe for
// concurrent use.
func (e *Engine) ReadText(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set ocr languages %v: %w", e.languages, err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("load image for ocr: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr recognition: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// Probe verifies the engine is usable: the Tesseract data files must
// include every configured language.
func (e *Engine) Probe() error {
	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("query tesseract languages: %w", err)
	}

	have := make(map[string]bool, len(available))
	for _, lang := range available {
		have[lang] = true
	}

	for _, lang := range e.languages {
		if !have[lang] {
			return fmt.Errorf("tesseract language %q not installed (available: %s)",
				lang, strings.Join(available, ", "))
		}
	}

	return nil
}
