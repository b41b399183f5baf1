// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/cache"
	"ragqa/internal/embedding/ollama"
	embopenai "ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/generation"
	"ragqa/internal/loader"
	"ragqa/internal/model"
	"ragqa/internal/openaiclient"
	"ragqa/internal/reranker"
	"ragqa/internal/reranker/lexical"
	rrkopenai "ragqa/internal/reranker/openai"
	"ragqa/internal/service"
)

// Components is a wired service plus the resources it holds open.
type Components struct {
	Service   *service.RAGService
	Embedder  domain.Embedder
	CanAnswer bool

	mu      sync.Mutex
	closers []io.Closer
}

// Close releases connections opened while building or using the service.
func (c *Components) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Components) track(cl io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, cl)
}

// Build creates every component cfg selects. Remote clients are created
// without network calls; the embedding cache connects on first use.
func Build(cfg *config.AppConfig, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}

	ch, err := chunker.NewTokenChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	emb, err := comps.buildEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	comps.Embedder = emb

	opts := service.Options{
		Source:          loader.New(logger),
		Chunker:         ch,
		Embedder:        emb,
		BatchSize:       cfg.Embedder.BatchSize,
		DefaultTopK:     cfg.Retrieval.TopK,
		LexicalFallback: cfg.Retrieval.LexicalFallback,
		Logger:          logger,
	}
	if cfg.Reranker.Enabled {
		rr, err := buildReranker(cfg.Reranker, logger)
		if err != nil {
			return nil, fmt.Errorf("reranker: %w", err)
		}
		opts.Reranker = rr
		opts.Candidates = cfg.Reranker.Candidates
	}
	if cfg.Generation.RewriteQueries {
		opts.Rewriter = buildRewriter(cfg.Generation, logger)
	}
	if cfg.Generation.Enabled {
		gen, err := buildGenerator(cfg.Generation)
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		opts.Generator = gen
		comps.CanAnswer = true
	}

	comps.Service = service.NewRAGService(opts)
	logger.Debug("components ready",
		"embedder", emb.Name(),
		"reranker", cfg.Reranker.Enabled,
		"generation", cfg.Generation.Enabled)
	return comps, nil
}

func clientConfig(c config.OpenAIConfig) openaiclient.Config {
	return openaiclient.Config{
		BaseURL:           c.BaseURL,
		APIKeyEnv:         c.APIKeyEnv,
		Model:             c.Model,
		Timeout:           c.Timeout(),
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

func (c *Components) buildEmbedder(cfg config.EmbedderConfig, logger *slog.Logger) (domain.Embedder, error) {
	var inner domain.Embedder
	switch cfg.Type {
	case "tfidf", "":
		// corpus-fitted, nothing to cache
		return tfidf.NewEmbedder(), nil
	case "openai":
		e, err := embopenai.NewEmbedder(embopenai.Config{Config: clientConfig(cfg.OpenAI), Concurrency: cfg.OpenAI.Concurrency})
		if err != nil {
			return nil, err
		}
		inner = e
	case "ollama":
		e, err := ollama.NewEmbedder(ollama.Config{
			Host:    cfg.Ollama.Host,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}

	if cfg.Cache.Type != "redis" {
		return inner, nil
	}
	rc := cfg.Cache.Redis
	return embedding.NewLazy(inner.Name(), func(ctx context.Context) (domain.Embedder, error) {
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			URL:      rc.URL,
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			TTL:      time.Duration(rc.TTLSecs) * time.Second,
		})
		if err != nil {
			logger.Warn("embedding cache unavailable, embedding without it", "error", err)
			return inner, nil
		}
		c.track(store)
		return cache.New(inner, store, rc.Prefix, logger), nil
	}), nil
}

func buildReranker(cfg config.RerankerConfig, logger *slog.Logger) (*reranker.Reranker, error) {
	switch cfg.Type {
	case "lexical", "":
		return reranker.New(model.Ready[domain.ScoringModel]("lexical", lexical.New()), logger), nil
	case "openai":
		rc := rrkopenai.Config{Config: clientConfig(cfg.OpenAI), Concurrency: cfg.OpenAI.Concurrency}
		handle := model.NewHandle[domain.ScoringModel]("openai-judge", func(ctx context.Context) (domain.ScoringModel, error) {
			return rrkopenai.New(rc)
		})
		return reranker.New(handle, logger), nil
	default:
		return nil, fmt.Errorf("unknown reranker type %q", cfg.Type)
	}
}

func buildRewriter(cfg config.GenerationConfig, logger *slog.Logger) *generation.Rewriter {
	client, err := openaiclient.New(clientConfig(cfg.OpenAI), "gpt-4o-mini")
	if err != nil {
		logger.Warn("query rewriting disabled", "error", err)
		return nil
	}
	return generation.NewRewriter(client, cfg.RewriteMode, logger)
}

func buildGenerator(cfg config.GenerationConfig) (generation.Generator, error) {
	switch cfg.Type {
	case "extractive":
		return generation.NewExtractiveGenerator(cfg.MaxSentences, cfg.MaxContextTokens), nil
	case "openai", "":
		client, err := openaiclient.New(clientConfig(cfg.OpenAI), "gpt-4o-mini")
		if err != nil {
			return nil, err
		}
		return generation.NewChatGenerator(client, cfg.MaxContextTokens), nil
	default:
		return nil, fmt.Errorf("unknown generation type %q", cfg.Type)
	}
}
