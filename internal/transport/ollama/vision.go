package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

// Vision describes images with a multimodal model. The caller treats it as
// best-effort; errors here are swallowed by the extractor.
type Vision struct {
	client  *openai.Client
	model   string
	prompt  string
	timeout time.Duration
	logger  *zap.Logger
}

// VisionConfig holds the vision provider settings.
type VisionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Prompt  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewVision creates a vision description provider.
func NewVision(cfg *VisionConfig) *Vision {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "Describe this image in detail. Include any visible text, tables, charts and diagrams."
	}
	return &Vision{
		client:  newClient(cfg.BaseURL, cfg.APIKey),
		model:   cfg.Model,
		prompt:  prompt,
		timeout: timeout,
		logger:  logger,
	}
}

// Describe sends the image as a base64 data URL and returns the model's
// description.
func (v *Vision) Describe(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: v.prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURL(imagePath, data),
						},
					},
				},
			},
		},
	}

	resp, err := v.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("describe image: %w: %w", err, domain.ErrCollaboratorUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices: %w", domain.ErrCollaboratorUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

// dataURL encodes image bytes as a data URL with a MIME type derived from
// the extension.
func dataURL(path string, data []byte) string {
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".bmp":
		mime = "image/bmp"
	case ".webp":
		mime = "image/webp"
	case ".tif", ".tiff":
		mime = "image/tiff"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
