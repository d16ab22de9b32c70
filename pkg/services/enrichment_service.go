package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/config"
	"github.com/catalogai/catalog-engine/pkg/llm"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/resilience"
)

const enrichmentSystemMessage = `You are a procurement data specialist. Given a product name, return accurate catalog details about the product as JSON. Respond with JSON only, no prose.`

const enrichmentPromptTemplate = `Provide catalog details for the product %q as a JSON object with exactly these fields:
- "name": the canonical product name (string, required)
- "description": a concise 1-2 sentence description (string, required)
- "category": the product category, e.g. "Communication", "Developer Tools" (string, required)
- "vendor": the company that sells the product (string, required)
- "price": typical price in USD, or null if unknown (number or null)
- "pricing_type": one of "one_time", "monthly", "yearly", "usage_based", or null (string or null)
- "product_url": the official product page, or null (string or null)
- "sku": a vendor SKU if publicly known, or null (string or null)
- "metadata": any additional structured facts (object, may be empty)
- "confidence": "high", "medium", or "low" (string, required)`

// EnrichmentService generates catalog details for product names using the
// AI provider.
type EnrichmentService interface {
	// Enrich returns catalog details for one product name.
	Enrich(ctx context.Context, productName string) (*models.EnrichedProduct, error)

	// EnrichBatch enriches product names with bounded concurrency.
	// Duplicate names (case- and whitespace-insensitive) are enriched once
	// and fanned back out; a failed name degrades to a low-confidence
	// placeholder instead of failing the batch.
	EnrichBatch(ctx context.Context, productNames []string) ([]*models.EnrichedProduct, error)

	// MaxBatchSize returns the cap on names per batch request.
	MaxBatchSize() int
}

type enrichmentService struct {
	client       llm.Client
	policy       *resilience.Policy
	pool         *llm.WorkerPool
	maxBatchSize int
	logger       *zap.Logger
}

// NewEnrichmentService creates an EnrichmentService around the given
// provider client and resilience policy.
func NewEnrichmentService(client llm.Client, policy *resilience.Policy, cfg *config.EnrichmentConfig, logger *zap.Logger) EnrichmentService {
	return &enrichmentService{
		client:       client,
		policy:       policy,
		pool:         llm.NewWorkerPool(cfg.BatchConcurrency, cfg.ItemTimeout()),
		maxBatchSize: cfg.MaxBatchSize,
		logger:       logger.Named("enrichment"),
	}
}

var _ EnrichmentService = (*enrichmentService)(nil)

func (s *enrichmentService) MaxBatchSize() int {
	return s.maxBatchSize
}

func (s *enrichmentService) Enrich(ctx context.Context, productName string) (*models.EnrichedProduct, error) {
	name := strings.TrimSpace(productName)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is required", apperrors.ErrValidation)
	}

	prompt := fmt.Sprintf(enrichmentPromptTemplate, name)

	response, err := resilience.ExecuteWithResult(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.client.GenerateResponse(ctx, prompt, enrichmentSystemMessage, 0.1)
	})
	if err != nil {
		return nil, err
	}

	var product models.EnrichedProduct
	if err := llm.ParseJSONResponse(response, &product); err != nil {
		s.logger.Warn("Enrichment response was not valid JSON",
			zap.String("product", name),
			zap.Error(err))
		return nil, fmt.Errorf("enrichment returned unparseable response: %w", err)
	}

	if err := validateEnrichedProduct(&product); err != nil {
		s.logger.Warn("Enrichment response failed validation",
			zap.String("product", name),
			zap.Error(err))
		return nil, err
	}

	return &product, nil
}

// validateEnrichedProduct enforces the strict response contract. A response
// missing required fields is treated as a provider failure, not passed
// through half-filled.
func validateEnrichedProduct(p *models.EnrichedProduct) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("enrichment response is missing name")
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("enrichment response is missing description")
	}
	if strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("enrichment response is missing category")
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return fmt.Errorf("enrichment response is missing vendor")
	}
	switch p.Confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		return fmt.Errorf("enrichment response has invalid confidence %q", p.Confidence)
	}
	if p.PricingType != nil && !validPricingType(*p.PricingType) {
		p.PricingType = nil
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return nil
}

// normalizeProductName collapses case and internal whitespace so "Slack " and
// "slack" dedupe to one upstream call.
func normalizeProductName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (s *enrichmentService) EnrichBatch(ctx context.Context, productNames []string) ([]*models.EnrichedProduct, error) {
	if len(productNames) == 0 {
		return nil, fmt.Errorf("%w: product_names is required", apperrors.ErrValidation)
	}
	if len(productNames) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds maximum of %d", apperrors.ErrValidation, len(productNames), s.maxBatchSize)
	}
	for i, name := range productNames {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: product_names[%d] is empty", apperrors.ErrValidation, i)
		}
	}

	// Dedupe before fan-out: each distinct normalized name costs exactly
	// one upstream call.
	unique := make([]string, 0, len(productNames))
	seen := make(map[string]int, len(productNames))
	for _, name := range productNames {
		key := normalizeProductName(name)
		if _, ok := seen[key]; !ok {
			seen[key] = len(unique)
			unique = append(unique, name)
		}
	}

	results := llm.Process(ctx, s.pool, unique, func(ctx context.Context, name string) (*models.EnrichedProduct, error) {
		return s.Enrich(ctx, name)
	})

	products := make([]*models.EnrichedProduct, len(productNames))
	for i, name := range productNames {
		r := results[seen[normalizeProductName(name)]]
		if r.Err != nil {
			products[i] = placeholderProduct(name, r.Err)
			continue
		}
		products[i] = r.Value
	}

	return products, nil
}

// placeholderProduct is the degraded slot for a failed batch entry.
func placeholderProduct(name string, err error) *models.EnrichedProduct {
	return &models.EnrichedProduct{
		Name:        strings.TrimSpace(name),
		Description: "Enrichment unavailable",
		Category:    "Unknown",
		Vendor:      "Unknown",
		Metadata:    map[string]any{},
		Confidence:  models.ConfidenceLow,
		Error:       err.Error(),
	}
}
