// Package services contains the business logic for catalog-engine.
// Services depend on repositories for persistence and on the llm and
// resilience packages for external calls; handlers depend on services.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/config"
	"github.com/catalogai/catalog-engine/pkg/llm"
	"github.com/catalogai/catalog-engine/pkg/resilience"
)

// EmbeddingService generates embedding vectors for catalog text.
type EmbeddingService interface {
	// EncodeText embeds a single text. Empty or whitespace-only input is
	// rejected before any provider call.
	EncodeText(ctx context.Context, text string) ([]float32, error)

	// EncodeCatalogItem embeds an item's canonical text.
	EncodeCatalogItem(ctx context.Context, name, description, category string) ([]float32, error)

	// EncodeBatch embeds texts with bounded concurrency. The result has
	// one slot per input; a failed slot is nil, never dropped. When every
	// slot fails the batch itself returns an error.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the required vector length.
	Dimension() int
}

type embeddingService struct {
	client    llm.Client
	policy    *resilience.Policy
	pool      *llm.WorkerPool
	dimension int
	logger    *zap.Logger
}

// NewEmbeddingService creates an EmbeddingService around the given provider
// client and resilience policy.
func NewEmbeddingService(client llm.Client, policy *resilience.Policy, cfg *config.EmbeddingConfig, logger *zap.Logger) EmbeddingService {
	return &embeddingService{
		client:    client,
		policy:    policy,
		pool:      llm.NewWorkerPool(cfg.BatchConcurrency, cfg.ItemTimeout()),
		dimension: cfg.Dimension,
		logger:    logger.Named("embedding"),
	}
}

var _ EmbeddingService = (*embeddingService)(nil)

// CanonicalItemText builds the deterministic text an item is embedded from.
// Parts are joined with " | ": the name, then "Category: X" when a category
// is present, then the description. Missing parts are omitted entirely so
// two items with the same populated fields always embed identically.
func CanonicalItemText(name, description, category string) string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(name); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(category); s != "" {
		parts = append(parts, "Category: "+s)
	}
	if s := strings.TrimSpace(description); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

func (s *embeddingService) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	embedding, err := resilience.ExecuteWithResult(ctx, s.policy, func(ctx context.Context) ([]float32, error) {
		return s.client.CreateEmbedding(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	// A wrong-length vector would silently poison similarity search, so it
	// is a hard failure rather than a truncation.
	if len(embedding) != s.dimension {
		s.logger.Error("Embedding dimension mismatch",
			zap.Int("expected", s.dimension),
			zap.Int("got", len(embedding)))
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	return embedding, nil
}

func (s *embeddingService) EncodeCatalogItem(ctx context.Context, name, description, category string) ([]float32, error) {
	text := CanonicalItemText(name, description, category)
	if text == "" {
		return nil, fmt.Errorf("cannot embed item with no name, category or description")
	}
	return s.EncodeText(ctx, text)
}

func (s *embeddingService) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := llm.Process(ctx, s.pool, texts, func(ctx context.Context, text string) ([]float32, error) {
		return s.EncodeText(ctx, text)
	})

	var firstErr error
	failed := 0
	embeddings := make([][]float32, len(texts))
	for i, r := range results {
		if r.Err != nil {
			s.logger.Warn("Batch embedding slot failed",
				zap.Int("index", i),
				zap.Error(r.Err))
			if firstErr == nil {
				firstErr = r.Err
			}
			failed++
			continue
		}
		embeddings[i] = r.Value
	}

	if len(texts) > 0 && failed == len(texts) {
		return nil, fmt.Errorf("all %d embedding calls failed: %w", len(texts), firstErr)
	}

	return embeddings, nil
}

func (s *embeddingService) Dimension() int {
	return s.dimension
}
