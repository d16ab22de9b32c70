package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/repositories"
)

// CreateProposalInput carries the caller-supplied fields for a new proposal.
type CreateProposalInput struct {
	ProposalType    string
	ItemName        *string
	ItemDescription *string
	ItemCategory    *string
	ItemMetadata    map[string]any
	ItemPrice       *float64
	ItemPricingType *string
	ItemProductURL  *string
	ItemVendor      *string
	ItemSKU         *string
	ReplacingItemID *uuid.UUID
	RequestID       *uuid.UUID
}

// ReviewProposalResult is the outcome of an approved or rejected proposal.
// ItemID is set only for approvals and names the item the merge touched.
type ReviewProposalResult struct {
	Proposal *models.Proposal `json:"proposal"`
	ItemID   *uuid.UUID       `json:"item_id,omitempty"`
}

// ProposalService owns the proposal state machine: pending -> merged|rejected,
// both terminal. Approvals dispatch to type-specific merge functions that
// mutate the catalog and settle the proposal in one transaction.
type ProposalService interface {
	// Create validates and inserts a pending proposal. Reviewer-only.
	Create(ctx context.Context, input *CreateProposalInput) (*models.Proposal, error)

	// SubmitNewItem inserts a member-submitted ADD_ITEM proposal. Any org
	// member may call it; the proposal type is forced regardless of input.
	SubmitNewItem(ctx context.Context, input *CreateProposalInput) (*models.Proposal, error)

	// Get returns a single proposal.
	Get(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error)

	// List returns the org's proposals, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.Proposal, error)

	// Review settles a pending proposal. Exactly one concurrent review wins;
	// the loser gets apperrors.ErrConflict.
	Review(ctx context.Context, proposalID uuid.UUID, approve bool, notes *string) (*ReviewProposalResult, error)
}

type proposalService struct {
	repo      repositories.ProposalRepository
	catalog   repositories.CatalogRepository
	embedding EmbeddingService
	audit     AuditService
	logger    *zap.Logger
}

// NewProposalService creates a new ProposalService.
func NewProposalService(repo repositories.ProposalRepository, catalog repositories.CatalogRepository, embedding EmbeddingService, audit AuditService, logger *zap.Logger) ProposalService {
	return &proposalService{
		repo:      repo,
		catalog:   catalog,
		embedding: embedding,
		audit:     audit,
		logger:    logger.Named("proposal"),
	}
}

var _ ProposalService = (*proposalService)(nil)

func (s *proposalService) Create(ctx context.Context, input *CreateProposalInput) (*models.Proposal, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	if !principal.CanReview() {
		return nil, fmt.Errorf("%w: proposals require reviewer or admin role", apperrors.ErrForbidden)
	}

	return s.insert(ctx, principal, input)
}

func (s *proposalService) SubmitNewItem(ctx context.Context, input *CreateProposalInput) (*models.Proposal, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	input.ProposalType = models.ProposalTypeAddItem
	input.ReplacingItemID = nil

	return s.insert(ctx, principal, input)
}

func (s *proposalService) insert(ctx context.Context, principal *models.Principal, input *CreateProposalInput) (*models.Proposal, error) {
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	proposal := &models.Proposal{
		OrgID:           principal.OrgID,
		ProposedBy:      principal.UserID,
		ProposalType:    input.ProposalType,
		ItemName:        input.ItemName,
		ItemDescription: input.ItemDescription,
		ItemCategory:    input.ItemCategory,
		ItemMetadata:    input.ItemMetadata,
		ItemPrice:       input.ItemPrice,
		ItemPricingType: input.ItemPricingType,
		ItemProductURL:  input.ItemProductURL,
		ItemVendor:      input.ItemVendor,
		ItemSKU:         input.ItemSKU,
		ReplacingItemID: input.ReplacingItemID,
		RequestID:       input.RequestID,
		Status:          models.ProposalStatusPending,
	}

	if err := s.repo.Create(ctx, proposal); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventProposalCreated,
		models.ResourceTypeProposal, proposal.ID, map[string]any{"proposal_type": proposal.ProposalType})

	return proposal, nil
}

func (s *proposalService) validateInput(ctx context.Context, input *CreateProposalInput) error {
	if !models.ValidProposalType(input.ProposalType) {
		return fmt.Errorf("%w: invalid proposal type %q", apperrors.ErrValidation, input.ProposalType)
	}

	needsItem := input.ProposalType == models.ProposalTypeAddItem || input.ProposalType == models.ProposalTypeReplaceItem
	needsTarget := input.ProposalType == models.ProposalTypeReplaceItem || input.ProposalType == models.ProposalTypeDeprecateItem

	if needsItem {
		if input.ItemName == nil || *input.ItemName == "" {
			return fmt.Errorf("%w: item_name is required for %s", apperrors.ErrValidation, input.ProposalType)
		}
		if input.ItemDescription == nil || *input.ItemDescription == "" {
			return fmt.Errorf("%w: item_description is required for %s", apperrors.ErrValidation, input.ProposalType)
		}
	}
	if input.ItemPricingType != nil && !validPricingType(*input.ItemPricingType) {
		return fmt.Errorf("%w: invalid pricing type %q", apperrors.ErrValidation, *input.ItemPricingType)
	}

	if needsTarget {
		if input.ReplacingItemID == nil {
			return fmt.Errorf("%w: replacing_item_id is required for %s", apperrors.ErrValidation, input.ProposalType)
		}
		target, err := s.catalog.GetByID(ctx, *input.ReplacingItemID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: replacing_item_id does not reference an existing item", apperrors.ErrValidation)
			}
			return err
		}
		if target.Status != models.ItemStatusActive {
			return fmt.Errorf("%w: item %s is already deprecated", apperrors.ErrValidation, target.ID)
		}
	}

	return nil
}

func (s *proposalService) Get(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, fmt.Errorf("%w: proposal %s", apperrors.ErrNotFound, proposalID)
	}
	return proposal, nil
}

func (s *proposalService) List(ctx context.Context, status string, limit int) ([]*models.Proposal, error) {
	if status != "" && status != models.ProposalStatusPending && status != models.ProposalStatusMerged && status != models.ProposalStatusRejected {
		return nil, fmt.Errorf("%w: invalid proposal status %q", apperrors.ErrValidation, status)
	}
	return s.repo.List(ctx, status, limit)
}

func (s *proposalService) Review(ctx context.Context, proposalID uuid.UUID, approve bool, notes *string) (*ReviewProposalResult, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, fmt.Errorf("%w: proposal %s", apperrors.ErrNotFound, proposalID)
	}
	if !principal.CanReview() {
		return nil, fmt.Errorf("%w: reviewing proposals requires reviewer or admin role", apperrors.ErrForbidden)
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, fmt.Errorf("%w: proposal is already %s", apperrors.ErrConflict, proposal.Status)
	}

	if !approve {
		won, err := s.repo.RejectConditional(ctx, proposalID, principal.UserID, notes)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, fmt.Errorf("%w: proposal was reviewed concurrently", apperrors.ErrConflict)
		}

		s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventProposalRejected,
			models.ResourceTypeProposal, proposalID, nil)

		return s.reviewResult(ctx, proposalID, nil)
	}

	itemID, err := s.merge(ctx, proposal, principal.UserID, notes)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventProposalMerged,
		models.ResourceTypeProposal, proposalID, map[string]any{
			"proposal_type": proposal.ProposalType,
			"item_id":       itemID.String(),
		})

	return s.reviewResult(ctx, proposalID, &itemID)
}

// merge dispatches to the type-specific SQL merge function. The embedding is
// computed before the merge so a provider failure aborts cleanly with no
// catalog mutation at all.
func (s *proposalService) merge(ctx context.Context, proposal *models.Proposal, reviewerID uuid.UUID, notes *string) (uuid.UUID, error) {
	var (
		itemID uuid.UUID
		won    bool
		err    error
	)

	switch proposal.ProposalType {
	case models.ProposalTypeAddItem, models.ProposalTypeReplaceItem:
		var embedding []float32
		embedding, err = s.embedding.EncodeCatalogItem(ctx,
			proposal.ItemNameOrEmpty(),
			proposal.ItemDescriptionOrEmpty(),
			proposal.ItemCategoryOrEmpty())
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to embed proposed item: %w", err)
		}

		if proposal.ProposalType == models.ProposalTypeAddItem {
			itemID, won, err = s.repo.MergeAdd(ctx, proposal.ID, reviewerID, notes, embedding)
		} else {
			itemID, won, err = s.repo.MergeReplace(ctx, proposal.ID, reviewerID, notes, embedding)
		}
	case models.ProposalTypeDeprecateItem:
		itemID, won, err = s.repo.MergeDeprecate(ctx, proposal.ID, reviewerID, notes)
	default:
		return uuid.Nil, fmt.Errorf("%w: invalid proposal type %q", apperrors.ErrValidation, proposal.ProposalType)
	}

	if err != nil {
		return uuid.Nil, err
	}
	if !won {
		return uuid.Nil, fmt.Errorf("%w: proposal was reviewed concurrently", apperrors.ErrConflict)
	}

	s.logger.Info("Proposal merged",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("proposal_type", proposal.ProposalType),
		zap.String("item_id", itemID.String()))

	return itemID, nil
}

// reviewResult re-fetches the proposal so the response reflects the
// post-review state written by the database.
func (s *proposalService) reviewResult(ctx context.Context, proposalID uuid.UUID, itemID *uuid.UUID) (*ReviewProposalResult, error) {
	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, fmt.Errorf("%w: proposal %s", apperrors.ErrNotFound, proposalID)
	}
	return &ReviewProposalResult{Proposal: proposal, ItemID: itemID}, nil
}
