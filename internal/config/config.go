package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docchat API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vision    VisionConfig    `yaml:"vision"`
	OCR       OCRConfig       `yaml:"ocr"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig holds on-disk layout settings.
type StorageConfig struct {
	DocumentsDir  string `yaml:"documents_dir"`
	EmbeddingsDir string `yaml:"embeddings_dir"`
	EmbCacheDir   string `yaml:"embedding_cache_dir"` // empty disables the embedding cache
}

// OllamaConfig holds the local model host settings. The host must expose an
// OpenAI-compatible API (Ollama serves one under /v1).
type OllamaConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"` // Ollama ignores it, but the client requires one
	ChatModel         string `yaml:"chat_model"`
	ChatTimeoutSec    int    `yaml:"chat_timeout_sec"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// VisionConfig holds the optional image-description collaborator settings.
type VisionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	Prompt     string `yaml:"prompt"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// OCRConfig holds the optional OCR collaborator settings.
type OCRConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Languages []string `yaml:"languages"`
}

// ChunkingConfig holds word-window settings.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// RetrievalConfig holds similarity search settings.
type RetrievalConfig struct {
	TopK        int     `yaml:"top_k"`
	Threshold   float64 `yaml:"threshold"`
	CacheTTLSec int     `yaml:"cache_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Chat completions on local models are slow; the write timeout must
		// outlast the chat timeout.
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = "documents"
	}
	if c.Storage.EmbeddingsDir == "" {
		c.Storage.EmbeddingsDir = "embeddings"
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434/v1"
	}
	if c.Ollama.APIKey == "" {
		c.Ollama.APIKey = "ollama"
	}
	if c.Ollama.ChatModel == "" {
		c.Ollama.ChatModel = "llama3.2"
	}
	if c.Ollama.ChatTimeoutSec <= 0 {
		c.Ollama.ChatTimeoutSec = 120
	}
	if c.Ollama.ConnectTimeoutSec <= 0 {
		c.Ollama.ConnectTimeoutSec = 3
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-minilm"
	}
	if c.Vision.Model == "" {
		c.Vision.Model = "llava"
	}
	if c.Vision.Prompt == "" {
		c.Vision.Prompt = "Describe the contents of this image in detail."
	}
	if c.Vision.TimeoutSec <= 0 {
		c.Vision.TimeoutSec = 180
	}
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"eng"}
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 500
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = 50
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	if c.Retrieval.Threshold == 0 {
		c.Retrieval.Threshold = 0.3
	}
	if c.Retrieval.CacheTTLSec <= 0 {
		c.Retrieval.CacheTTLSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap (%d) must be less than chunking.chunk_size (%d)",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.Threshold < -1 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be within [-1, 1], got %f", c.Retrieval.Threshold)
	}
	if !strings.HasPrefix(c.Ollama.BaseURL, "http://") && !strings.HasPrefix(c.Ollama.BaseURL, "https://") {
		return fmt.Errorf("ollama.base_url must be an http(s) URL, got %q", c.Ollama.BaseURL)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
