package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// CatalogRepository provides data access for catalog items and their
// embeddings. Item+embedding pairs are created atomically by SQL functions;
// this layer never inserts them in separate statements.
type CatalogRepository interface {
	// Search returns active items ranked by cosine similarity to the
	// query embedding, best first. Items below threshold are not matches.
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.CatalogSearchHit, error)

	// GetByID returns a single item, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error)

	// List returns items for the org, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error)

	// CreateWithEmbedding atomically inserts an item and its embedding row.
	CreateWithEmbedding(ctx context.Context, orgID, createdBy uuid.UUID, input *models.NewCatalogItemInput, embedding []float32) (*models.CatalogItem, error)

	// Update applies a partial update; nil fields are left unchanged.
	Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error)

	// UpsertEmbedding writes the item's embedding row, replacing any
	// existing one. Used by re-embeds after updates and by repair.
	UpsertEmbedding(ctx context.Context, itemID uuid.UUID, embedding []float32) error

	// ListMissingEmbeddings returns active items that have no embedding row.
	// Deprecated items never come back to search, so repair skips them.
	ListMissingEmbeddings(ctx context.Context) ([]*models.CatalogItem, error)

	// EmbeddingStats returns the org's item count and embedded-item count.
	EmbeddingStats(ctx context.Context) (total int, withEmbeddings int, err error)
}

type catalogRepository struct{}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository() CatalogRepository {
	return &catalogRepository{}
}

var _ CatalogRepository = (*catalogRepository)(nil)

const catalogItemColumns = `id, org_id, name, description, category, price, pricing_type,
	       product_url, vendor, sku, metadata, status, replacement_item_id,
	       created_by, created_at`

func (r *catalogRepository) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.CatalogSearchHit, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, org_id, name, description, category, price, pricing_type,
		       product_url, vendor, sku, metadata, status, replacement_item_id,
		       created_by, created_at, similarity
		FROM search_catalog_items($1::vector, $2, $3)`

	rows, err := scope.Conn.Query(ctx, query, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	defer rows.Close()

	var hits []*models.CatalogSearchHit
	for rows.Next() {
		var hit models.CatalogSearchHit
		var metadata []byte
		err := rows.Scan(
			&hit.ID,
			&hit.OrgID,
			&hit.Name,
			&hit.Description,
			&hit.Category,
			&hit.Price,
			&hit.PricingType,
			&hit.ProductURL,
			&hit.Vendor,
			&hit.SKU,
			&metadata,
			&hit.Status,
			&hit.ReplacementItemID,
			&hit.CreatedBy,
			&hit.CreatedAt,
			&hit.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		if err := unmarshalMetadata(metadata, &hit.Metadata); err != nil {
			return nil, err
		}
		hits = append(hits, &hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}

	return hits, nil
}

func (r *catalogRepository) GetByID(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + catalogItemColumns + `
		FROM catalog_items
		WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, itemID)
	item, err := scanCatalogItem(row)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: catalog item %s", apperrors.ErrNotFound, itemID)
	}
	return item, nil
}

func (r *catalogRepository) List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + catalogItemColumns + `
		FROM catalog_items
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	return scanCatalogItems(rows)
}

func (r *catalogRepository) CreateWithEmbedding(ctx context.Context, orgID, createdBy uuid.UUID, input *models.NewCatalogItemInput, embedding []float32) (*models.CatalogItem, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT create_item_with_embedding($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::vector)`

	var itemID uuid.UUID
	err := scope.Conn.QueryRow(ctx, query,
		orgID,
		createdBy,
		input.Name,
		input.Description,
		input.Category,
		input.Price,
		input.PricingType,
		input.ProductURL,
		input.Vendor,
		input.SKU,
		jsonbValueMap(input.Metadata),
		vectorLiteral(embedding),
	).Scan(&itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}

	return r.GetByID(ctx, itemID)
}

func (r *catalogRepository) Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	setClauses := make([]string, 0, 10)
	args := make([]any, 0, 11)
	args = append(args, itemID)

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		addSet("name", *update.Name)
	}
	if update.Description != nil {
		addSet("description", *update.Description)
	}
	if update.Category != nil {
		addSet("category", *update.Category)
	}
	if update.Price != nil {
		addSet("price", *update.Price)
	}
	if update.PricingType != nil {
		addSet("pricing_type", *update.PricingType)
	}
	if update.ProductURL != nil {
		addSet("product_url", *update.ProductURL)
	}
	if update.Vendor != nil {
		addSet("vendor", *update.Vendor)
	}
	if update.SKU != nil {
		addSet("sku", *update.SKU)
	}
	if update.Metadata != nil {
		addSet("metadata", jsonbValueMap(update.Metadata))
	}
	if update.Status != nil {
		addSet("status", *update.Status)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, itemID)
	}

	query := fmt.Sprintf(`
		UPDATE catalog_items
		SET %s
		WHERE id = $1
		RETURNING `+catalogItemColumns,
		strings.Join(setClauses, ", "))

	row := scope.Conn.QueryRow(ctx, query, args...)
	item, err := scanCatalogItem(row)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: catalog item %s", apperrors.ErrNotFound, itemID)
	}
	return item, nil
}

func (r *catalogRepository) UpsertEmbedding(ctx context.Context, itemID uuid.UUID, embedding []float32) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		INSERT INTO catalog_item_embeddings (item_id, org_id, embedding, updated_at)
		SELECT i.id, i.org_id, $2::vector, now()
		FROM catalog_items i
		WHERE i.id = $1
		ON CONFLICT (item_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, updated_at = now()`

	_, err := scope.Conn.Exec(ctx, query, itemID, vectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	return nil
}

func (r *catalogRepository) ListMissingEmbeddings(ctx context.Context) ([]*models.CatalogItem, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT i.id, i.org_id, i.name, i.description, i.category, i.price,
		       i.pricing_type, i.product_url, i.vendor, i.sku, i.metadata,
		       i.status, i.replacement_item_id, i.created_by, i.created_at
		FROM catalog_items i
		LEFT JOIN catalog_item_embeddings e ON e.item_id = i.id
		WHERE e.item_id IS NULL AND i.status = 'active'
		ORDER BY i.created_at ASC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items missing embeddings: %w", err)
	}
	defer rows.Close()

	return scanCatalogItems(rows)
}

func (r *catalogRepository) EmbeddingStats(ctx context.Context) (int, int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, 0, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*), COUNT(e.item_id)
		FROM catalog_items i
		LEFT JOIN catalog_item_embeddings e ON e.item_id = i.id`

	var total, withEmbeddings int
	if err := scope.Conn.QueryRow(ctx, query).Scan(&total, &withEmbeddings); err != nil {
		return 0, 0, fmt.Errorf("failed to count embeddings: %w", err)
	}

	return total, withEmbeddings, nil
}

// Helper functions

func scanCatalogItems(rows pgx.Rows) ([]*models.CatalogItem, error) {
	var items []*models.CatalogItem
	for rows.Next() {
		var item models.CatalogItem
		var metadata []byte
		err := rows.Scan(
			&item.ID,
			&item.OrgID,
			&item.Name,
			&item.Description,
			&item.Category,
			&item.Price,
			&item.PricingType,
			&item.ProductURL,
			&item.Vendor,
			&item.SKU,
			&metadata,
			&item.Status,
			&item.ReplacementItemID,
			&item.CreatedBy,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		if err := unmarshalMetadata(metadata, &item.Metadata); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog items: %w", err)
	}

	return items, nil
}

func scanCatalogItem(row pgx.Row) (*models.CatalogItem, error) {
	var item models.CatalogItem
	var metadata []byte
	err := row.Scan(
		&item.ID,
		&item.OrgID,
		&item.Name,
		&item.Description,
		&item.Category,
		&item.Price,
		&item.PricingType,
		&item.ProductURL,
		&item.Vendor,
		&item.SKU,
		&metadata,
		&item.Status,
		&item.ReplacementItemID,
		&item.CreatedBy,
		&item.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan catalog item: %w", err)
	}
	if err := unmarshalMetadata(metadata, &item.Metadata); err != nil {
		return nil, err
	}
	return &item, nil
}

func unmarshalMetadata(raw []byte, target *map[string]any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
