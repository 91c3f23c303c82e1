// Package ollama talks to a locally hosted Ollama instance through its
// OpenAI-compatible API under /v1: embeddings, chat completions, and vision
// descriptions.
package ollama

import (
	openai "github.com/sashabaranov/go-openai"
)

// newClient builds a go-openai client pointed at the local host. Ollama
// ignores the API key but the client refuses an empty one.
func newClient(baseURL, apiKey string) *openai.Client {
	if apiKey == "" {
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}
