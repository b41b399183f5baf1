package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	Concurrency       int    `yaml:"concurrency"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Timeout converts TimeoutSecs to a duration.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RedisConfig configures the embedding cache backend.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
	Prefix   string `yaml:"prefix"`
}

// CacheConfig selects the embedding cache.
type CacheConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string       `yaml:"type"`
	BatchSize int          `yaml:"batch_size"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	Ollama    OllamaConfig `yaml:"ollama"`
	Cache     CacheConfig  `yaml:"cache"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// RerankerConfig configures the optional second-stage reranker.
type RerankerConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Type       string       `yaml:"type"`
	Candidates int          `yaml:"candidates"`
	OpenAI     OpenAIConfig `yaml:"openai"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK            int  `yaml:"top_k"`
	LexicalFallback bool `yaml:"lexical_fallback"`
}

// GenerationConfig configures answer generation and query rewriting.
type GenerationConfig struct {
	Enabled          bool         `yaml:"enabled"`
	Type             string       `yaml:"type"`
	MaxSentences     int          `yaml:"max_sentences"`
	MaxContextTokens int          `yaml:"max_context_tokens"`
	RewriteQueries   bool         `yaml:"rewrite_queries"`
	RewriteMode      string       `yaml:"rewrite_mode"`
	OpenAI           OpenAIConfig `yaml:"openai"`
}

type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	switch c.Embedder.Type {
	case "tfidf", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.Embedder.Cache.Type {
	case "", "none", "redis":
	default:
		return fmt.Errorf("unknown embedder cache type %q", c.Embedder.Cache.Type)
	}
	switch c.Reranker.Type {
	case "lexical", "openai":
	default:
		return fmt.Errorf("unknown reranker type %q", c.Reranker.Type)
	}
	switch c.Generation.Type {
	case "openai", "extractive":
	default:
		return fmt.Errorf("unknown generation type %q", c.Generation.Type)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Chunker:    ChunkerConfig{ChunkSize: 400, Overlap: 80},
		Embedder:   EmbedderConfig{Type: "tfidf", BatchSize: 32, Cache: CacheConfig{Type: "none"}},
		Reranker:   RerankerConfig{Type: "lexical", Candidates: 20},
		Retrieval:  RetrievalConfig{TopK: 5, LexicalFallback: true},
		Generation: GenerationConfig{Type: "openai", MaxSentences: 3, MaxContextTokens: 512, RewriteMode: "general"},
		Server:     ServerConfig{Addr: ":8080"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 400
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	applyOpenAIDefaults(&cfg.Embedder.OpenAI, "text-embedding-3-small")
	if cfg.Embedder.Ollama.Host == "" {
		cfg.Embedder.Ollama.Host = "http://localhost:11434"
	}
	if cfg.Embedder.Ollama.Model == "" {
		cfg.Embedder.Ollama.Model = "nomic-embed-text"
	}
	if cfg.Embedder.Ollama.TimeoutSecs == 0 {
		cfg.Embedder.Ollama.TimeoutSecs = 60
	}
	if cfg.Embedder.Cache.Redis.Prefix == "" {
		cfg.Embedder.Cache.Redis.Prefix = "ragqa:emb:"
	}
	if cfg.Reranker.Type == "" {
		cfg.Reranker.Type = "lexical"
	}
	if cfg.Reranker.Candidates == 0 {
		cfg.Reranker.Candidates = 20
	}
	applyOpenAIDefaults(&cfg.Reranker.OpenAI, "gpt-4o-mini")
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Generation.Type == "" {
		cfg.Generation.Type = "openai"
	}
	if cfg.Generation.MaxSentences == 0 {
		cfg.Generation.MaxSentences = 3
	}
	if cfg.Generation.MaxContextTokens == 0 {
		cfg.Generation.MaxContextTokens = 512
	}
	if cfg.Generation.RewriteMode == "" {
		cfg.Generation.RewriteMode = "general"
	}
	applyOpenAIDefaults(&cfg.Generation.OpenAI, "gpt-4o-mini")
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
