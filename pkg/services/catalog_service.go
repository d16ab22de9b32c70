package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/repositories"
)

// Search result bounds.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// CatalogService provides catalog reads, semantic search, direct admin
// writes, and embedding repair. All workflow-driven mutations go through
// ProposalService instead.
type CatalogService interface {
	// Search embeds the query and returns active items at or above the
	// similarity threshold, ranked best first.
	Search(ctx context.Context, query string, threshold float64, limit int) ([]*models.CatalogSearchHit, error)

	// Get returns a single item.
	Get(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error)

	// List returns the org's items, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error)

	// Create inserts an item and its embedding atomically. Admin-only,
	// bypasses the proposal workflow.
	Create(ctx context.Context, input *models.NewCatalogItemInput) (*models.CatalogItem, error)

	// Update applies a partial update. When embedding-relevant fields change,
	// the item is re-embedded best-effort; a failed re-embed leaves the old
	// vector in place and never rolls back the update.
	Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error)

	// RepairEmbeddings backfills missing embedding rows for the org.
	// Idempotent: a catalog with no holes reports zero repairs.
	RepairEmbeddings(ctx context.Context) (*models.RepairReport, error)
}

type catalogService struct {
	repo      repositories.CatalogRepository
	embedding EmbeddingService
	audit     AuditService
	logger    *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo repositories.CatalogRepository, embedding EmbeddingService, audit AuditService, logger *zap.Logger) CatalogService {
	return &catalogService{
		repo:      repo,
		embedding: embedding,
		audit:     audit,
		logger:    logger.Named("catalog"),
	}
}

var _ CatalogService = (*catalogService)(nil)

func validPricingType(t string) bool {
	switch t {
	case models.PricingOneTime, models.PricingMonthly, models.PricingYearly, models.PricingUsageBased:
		return true
	}
	return false
}

func (s *catalogService) Search(ctx context.Context, query string, threshold float64, limit int) ([]*models.CatalogSearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", apperrors.ErrValidation)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 1, got %g", apperrors.ErrValidation, threshold)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	embedding, err := s.embedding.EncodeText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	hits, err := s.repo.Search(ctx, embedding, threshold, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Catalog search completed",
		zap.Int("hits", len(hits)),
		zap.Float64("threshold", threshold),
		zap.Int("limit", limit))
	return hits, nil
}

func (s *catalogService) Get(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	return s.repo.GetByID(ctx, itemID)
}

func (s *catalogService) List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error) {
	if status != "" && status != models.ItemStatusActive && status != models.ItemStatusDeprecated {
		return nil, fmt.Errorf("%w: invalid item status %q", apperrors.ErrValidation, status)
	}
	return s.repo.List(ctx, status, limit)
}

func (s *catalogService) Create(ctx context.Context, input *models.NewCatalogItemInput) (*models.CatalogItem, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: item name is required", apperrors.ErrValidation)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: item description is required", apperrors.ErrValidation)
	}
	if input.PricingType != nil && !validPricingType(*input.PricingType) {
		return nil, fmt.Errorf("%w: invalid pricing type %q", apperrors.ErrValidation, *input.PricingType)
	}

	embedding, err := s.embedding.EncodeCatalogItem(ctx, input.Name, input.Description, input.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to embed catalog item: %w", err)
	}

	item, err := s.repo.CreateWithEmbedding(ctx, principal.OrgID, principal.UserID, input, embedding)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventCatalogItemCreated,
		models.ResourceTypeCatalogItem, item.ID, map[string]any{"name": item.Name})

	return item, nil
}

func (s *catalogService) Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	if update.Name != nil && *update.Name == "" {
		return nil, fmt.Errorf("%w: item name cannot be empty", apperrors.ErrValidation)
	}
	if update.PricingType != nil && !validPricingType(*update.PricingType) {
		return nil, fmt.Errorf("%w: invalid pricing type %q", apperrors.ErrValidation, *update.PricingType)
	}
	if update.Status != nil && *update.Status != models.ItemStatusActive && *update.Status != models.ItemStatusDeprecated {
		return nil, fmt.Errorf("%w: invalid item status %q", apperrors.ErrValidation, *update.Status)
	}

	item, err := s.repo.Update(ctx, itemID, update)
	if err != nil {
		return nil, err
	}

	// The update is already committed; a failed re-embed only means the old
	// vector survives until the next repair pass.
	if update.TouchesEmbedding() {
		embedding, err := s.embedding.EncodeCatalogItem(ctx, item.Name, item.Description, item.Category)
		if err != nil {
			s.logger.Warn("Re-embed after update failed, keeping stale embedding",
				zap.String("item_id", item.ID.String()),
				zap.Error(err))
		} else if err := s.repo.UpsertEmbedding(ctx, item.ID, embedding); err != nil {
			s.logger.Warn("Failed to store refreshed embedding",
				zap.String("item_id", item.ID.String()),
				zap.Error(err))
		}
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventCatalogItemUpdated,
		models.ResourceTypeCatalogItem, item.ID, nil)

	return item, nil
}

func (s *catalogService) RepairEmbeddings(ctx context.Context) (*models.RepairReport, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	total, withEmbeddings, err := s.repo.EmbeddingStats(ctx)
	if err != nil {
		return nil, err
	}

	missing, err := s.repo.ListMissingEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.RepairReport{
		TotalItems:            total,
		ItemsWithEmbeddings:   withEmbeddings,
		ItemsWithoutEmbedding: len(missing),
	}

	if len(missing) == 0 {
		return report, nil
	}

	texts := make([]string, len(missing))
	for i, item := range missing {
		texts[i] = CanonicalItemText(item.Name, item.Description, item.Category)
	}

	embeddings, err := s.embedding.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding repair batch failed: %w", err)
	}
	for i, item := range missing {
		if embeddings[i] == nil {
			report.Failed++
			report.FailedItemIDs = append(report.FailedItemIDs, item.ID)
			continue
		}
		if err := s.repo.UpsertEmbedding(ctx, item.ID, embeddings[i]); err != nil {
			s.logger.Warn("Failed to store repaired embedding",
				zap.String("item_id", item.ID.String()),
				zap.Error(err))
			report.Failed++
			report.FailedItemIDs = append(report.FailedItemIDs, item.ID)
			continue
		}
		report.Repaired++
	}

	s.logger.Info("Embedding repair completed",
		zap.Int("total", report.TotalItems),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed))

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventEmbeddingsRepaired,
		models.ResourceTypeOrg, principal.OrgID, map[string]any{
			"repaired": report.Repaired,
			"failed":   report.Failed,
		})

	return report, nil
}
