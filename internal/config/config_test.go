package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_OverlapNotBelowChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking = ChunkingConfig{ChunkSize: 100, Overlap: 100}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap == chunk_size")
	}

	cfg.Chunking = ChunkingConfig{ChunkSize: 100, Overlap: 150}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap > chunk_size")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.Threshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold outside [-1, 1]")
	}
}

func TestValidate_BaseURLScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Ollama.BaseURL = "localhost:11434"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for base_url without scheme")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.Storage.DocumentsDir != "documents" {
		t.Errorf("expected DocumentsDir='documents', got %q", cfg.Storage.DocumentsDir)
	}
	if cfg.Storage.EmbeddingsDir != "embeddings" {
		t.Errorf("expected EmbeddingsDir='embeddings', got %q", cfg.Storage.EmbeddingsDir)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected BaseURL %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatTimeoutSec != 120 {
		t.Errorf("expected ChatTimeoutSec=120, got %d", cfg.Ollama.ChatTimeoutSec)
	}
	if cfg.Ollama.ConnectTimeoutSec != 3 {
		t.Errorf("expected ConnectTimeoutSec=3, got %d", cfg.Ollama.ConnectTimeoutSec)
	}
	if cfg.Vision.TimeoutSec != 180 {
		t.Errorf("expected Vision.TimeoutSec=180, got %d", cfg.Vision.TimeoutSec)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.Overlap != 50 {
		t.Errorf("expected chunking 500/50, got %d/%d", cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Threshold != 0.3 {
		t.Errorf("expected Threshold=0.3, got %f", cfg.Retrieval.Threshold)
	}
	if cfg.Retrieval.CacheTTLSec != 300 {
		t.Errorf("expected CacheTTLSec=300, got %d", cfg.Retrieval.CacheTTLSec)
	}
	if len(cfg.OCR.Languages) != 1 || cfg.OCR.Languages[0] != "eng" {
		t.Errorf("expected OCR languages [eng], got %v", cfg.OCR.Languages)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 9000, ReadTimeoutSec: 5, WriteTimeoutSec: 60, ShutdownSec: 5},
		Storage:   StorageConfig{DocumentsDir: "/data/docs", EmbeddingsDir: "/data/emb"},
		Chunking:  ChunkingConfig{ChunkSize: 200, Overlap: 20},
		Retrieval: RetrievalConfig{TopK: 5, Threshold: 0.5, CacheTTLSec: 60},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Storage.DocumentsDir != "/data/docs" {
		t.Errorf("expected DocumentsDir preserved, got %q", cfg.Storage.DocumentsDir)
	}
	if cfg.Chunking.ChunkSize != 200 || cfg.Chunking.Overlap != 20 {
		t.Errorf("expected chunking 200/20, got %d/%d", cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("DOCCHAT_TEST_PORT", "8123")
	defer os.Unsetenv("DOCCHAT_TEST_PORT")

	got := string(expandEnvVars([]byte("port: ${DOCCHAT_TEST_PORT}")))
	if got != "port: 8123" {
		t.Errorf("expandEnvVars = %q", got)
	}

	got = string(expandEnvVars([]byte("model: ${DOCCHAT_TEST_UNSET:-llama3.2}")))
	if got != "model: llama3.2" {
		t.Errorf("expandEnvVars default = %q", got)
	}
}
