package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// ProposalRepository provides data access for catalog proposals.
// Merges run inside SQL functions so the catalog mutation and the
// proposal's pending->merged transition commit or fail together.
type ProposalRepository interface {
	// Create inserts a pending proposal.
	Create(ctx context.Context, proposal *models.Proposal) error

	// GetByID returns a single proposal, or nil if it does not exist.
	GetByID(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error)

	// List returns proposals for the org, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.Proposal, error)

	// MergeAdd atomically creates the proposed item with its embedding and
	// marks the proposal merged. Returns the new item ID, or uuid.Nil and
	// false when the proposal was not pending anymore.
	MergeAdd(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error)

	// MergeReplace atomically creates the replacement item, deprecates the
	// replaced item with a link to its successor, and marks the proposal
	// merged. Returns the new item ID, or uuid.Nil and false on a lost race.
	MergeReplace(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error)

	// MergeDeprecate atomically deprecates the target item and marks the
	// proposal merged. Returns the item ID, or uuid.Nil and false on a
	// lost race.
	MergeDeprecate(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (uuid.UUID, bool, error)

	// RejectConditional transitions a pending proposal to rejected.
	// Returns false when the proposal was not pending anymore.
	RejectConditional(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (bool, error)
}

type proposalRepository struct{}

// NewProposalRepository creates a new ProposalRepository.
func NewProposalRepository() ProposalRepository {
	return &proposalRepository{}
}

var _ ProposalRepository = (*proposalRepository)(nil)

const proposalColumns = `id, org_id, proposed_by, proposal_type, item_name, item_description,
	       item_category, item_metadata, item_price, item_pricing_type, item_product_url,
	       item_vendor, item_sku, replacing_item_id, request_id, status,
	       reviewed_by, review_notes, reviewed_at, merged_at, created_at`

func (r *proposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		INSERT INTO proposals (
			org_id, proposed_by, proposal_type, item_name, item_description,
			item_category, item_metadata, item_price, item_pricing_type,
			item_product_url, item_vendor, item_sku, replacing_item_id,
			request_id, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		proposal.OrgID,
		proposal.ProposedBy,
		proposal.ProposalType,
		proposal.ItemName,
		proposal.ItemDescription,
		proposal.ItemCategory,
		jsonbValueMap(proposal.ItemMetadata),
		proposal.ItemPrice,
		proposal.ItemPricingType,
		proposal.ItemProductURL,
		proposal.ItemVendor,
		proposal.ItemSKU,
		proposal.ReplacingItemID,
		proposal.RequestID,
		proposal.Status,
		time.Now(),
	).Scan(&proposal.ID, &proposal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	return nil
}

func (r *proposalRepository) GetByID(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, proposalID)
	return scanProposal(row)
}

func (r *proposalRepository) List(ctx context.Context, status string, limit int) ([]*models.Proposal, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*models.Proposal
	for rows.Next() {
		proposal, err := scanProposalFromRows(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}

	return proposals, nil
}

func (r *proposalRepository) MergeAdd(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error) {
	return r.mergeWithEmbedding(ctx, "merge_add_item", proposalID, reviewerID, notes, embedding)
}

func (r *proposalRepository) MergeReplace(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error) {
	return r.mergeWithEmbedding(ctx, "merge_replace_item", proposalID, reviewerID, notes, embedding)
}

func (r *proposalRepository) mergeWithEmbedding(ctx context.Context, fn string, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return uuid.Nil, false, fmt.Errorf("no tenant scope in context")
	}

	// The function updates the proposal only while it is still pending and
	// returns NULL when a concurrent review already settled it.
	query := fmt.Sprintf(`SELECT %s($1, $2, $3, $4::vector)`, fn)

	var itemID *uuid.UUID
	err := scope.Conn.QueryRow(ctx, query, proposalID, reviewerID, notes, vectorLiteral(embedding)).Scan(&itemID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to merge proposal: %w", err)
	}
	if itemID == nil {
		return uuid.Nil, false, nil
	}

	return *itemID, true, nil
}

func (r *proposalRepository) MergeDeprecate(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (uuid.UUID, bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return uuid.Nil, false, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT merge_deprecate_item($1, $2, $3)`

	var itemID *uuid.UUID
	err := scope.Conn.QueryRow(ctx, query, proposalID, reviewerID, notes).Scan(&itemID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to merge deprecation: %w", err)
	}
	if itemID == nil {
		return uuid.Nil, false, nil
	}

	return *itemID, true, nil
}

func (r *proposalRepository) RejectConditional(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return false, fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE proposals
		SET status = 'rejected', reviewed_by = $2, review_notes = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'`

	result, err := scope.Conn.Exec(ctx, query, proposalID, reviewerID, notes, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to reject proposal: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Helper functions

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var p models.Proposal
	var itemMetadata []byte
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.ProposedBy,
		&p.ProposalType,
		&p.ItemName,
		&p.ItemDescription,
		&p.ItemCategory,
		&itemMetadata,
		&p.ItemPrice,
		&p.ItemPricingType,
		&p.ItemProductURL,
		&p.ItemVendor,
		&p.ItemSKU,
		&p.ReplacingItemID,
		&p.RequestID,
		&p.Status,
		&p.ReviewedBy,
		&p.ReviewNotes,
		&p.ReviewedAt,
		&p.MergedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan proposal: %w", err)
	}
	if err := unmarshalMetadata(itemMetadata, &p.ItemMetadata); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProposalFromRows(rows pgx.Rows) (*models.Proposal, error) {
	var p models.Proposal
	var itemMetadata []byte
	err := rows.Scan(
		&p.ID,
		&p.OrgID,
		&p.ProposedBy,
		&p.ProposalType,
		&p.ItemName,
		&p.ItemDescription,
		&p.ItemCategory,
		&itemMetadata,
		&p.ItemPrice,
		&p.ItemPricingType,
		&p.ItemProductURL,
		&p.ItemVendor,
		&p.ItemSKU,
		&p.ReplacingItemID,
		&p.RequestID,
		&p.Status,
		&p.ReviewedBy,
		&p.ReviewNotes,
		&p.ReviewedAt,
		&p.MergedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan proposal: %w", err)
	}
	if err := unmarshalMetadata(itemMetadata, &p.ItemMetadata); err != nil {
		return nil, err
	}
	return &p, nil
}
