package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

// ChatClient runs chat completions against the local model host. Local
// models are slow, so completions get a long independent timeout while
// connectivity checks get a short one.
type ChatClient struct {
	client         *openai.Client
	model          string
	chatTimeout    time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	ChatTimeout    time.Duration
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// NewChatClient creates a chat completion provider.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	chatTimeout := cfg.ChatTimeout
	if chatTimeout <= 0 {
		chatTimeout = 120 * time.Second
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 3 * time.Second
	}
	return &ChatClient{
		client:         newClient(cfg.BaseURL, cfg.APIKey),
		model:          cfg.Model,
		chatTimeout:    chatTimeout,
		connectTimeout: connectTimeout,
		logger:         logger,
	}
}

// Complete sends the conversation and returns the assistant reply.
func (c *ChatClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("chat completion timed out after %s: %w",
				c.chatTimeout, domain.ErrCollaboratorUnavailable)
		}
		return "", fmt.Errorf("chat completion: %w: %w", err, domain.ErrChatProviderError)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", domain.ErrChatProviderError)
	}

	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// CheckConnection verifies the model host is reachable.
func (c *ChatClient) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("model host unreachable: %w: %w", err, domain.ErrCollaboratorUnavailable)
	}
	return nil
}

// HealthCheck implements domain.HealthChecker.
func (c *ChatClient) HealthCheck(ctx context.Context) error {
	return c.CheckConnection(ctx)
}

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
