package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/repositories"
)

// CreateRequestInput carries the caller-supplied fields for a new request.
type CreateRequestInput struct {
	SearchQuery   string
	SearchResults []models.SearchResultSnapshot
	Justification *string
}

// ReviewRequestResult is the outcome of a request review. Proposal is set
// when an approval chained into proposal creation.
type ReviewRequestResult struct {
	Request  *models.Request  `json:"request"`
	Proposal *models.Proposal `json:"proposal,omitempty"`
}

// RequestService owns the new-item request workflow: members capture their
// search intent plus the candidate matches they saw, reviewers triage.
type RequestService interface {
	// Create validates and inserts a pending request.
	Create(ctx context.Context, input *CreateRequestInput) (*models.Request, error)

	// Get returns a single request.
	Get(ctx context.Context, requestID uuid.UUID) (*models.Request, error)

	// List returns the org's requests, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.Request, error)

	// Review settles a pending request. An approval may chain directly into
	// proposal creation; the review itself stands even if that chained
	// proposal fails.
	Review(ctx context.Context, requestID uuid.UUID, approve bool, notes *string, proposal *CreateProposalInput) (*ReviewRequestResult, error)
}

type requestService struct {
	repo      repositories.RequestRepository
	proposals ProposalService
	audit     AuditService
	logger    *zap.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(repo repositories.RequestRepository, proposals ProposalService, audit AuditService, logger *zap.Logger) RequestService {
	return &requestService{
		repo:      repo,
		proposals: proposals,
		audit:     audit,
		logger:    logger.Named("request"),
	}
}

var _ RequestService = (*requestService)(nil)

func (s *requestService) Create(ctx context.Context, input *CreateRequestInput) (*models.Request, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	if strings.TrimSpace(input.SearchQuery) == "" {
		return nil, fmt.Errorf("%w: search_query is required", apperrors.ErrValidation)
	}

	snapshots, err := normalizeSnapshots(input.SearchResults)
	if err != nil {
		return nil, err
	}

	request := &models.Request{
		OrgID:         principal.OrgID,
		CreatedBy:     principal.UserID,
		SearchQuery:   strings.TrimSpace(input.SearchQuery),
		SearchResults: snapshots,
		Justification: input.Justification,
		Status:        models.RequestStatusPending,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, models.EventRequestCreated,
		models.ResourceTypeRequest, request.ID, map[string]any{"search_query": request.SearchQuery})

	return request, nil
}

// normalizeSnapshots validates the captured search hits. A request with no
// matches at all is legitimate; an entry without a name is not.
func normalizeSnapshots(snapshots []models.SearchResultSnapshot) ([]models.SearchResultSnapshot, error) {
	if snapshots == nil {
		return []models.SearchResultSnapshot{}, nil
	}
	normalized := make([]models.SearchResultSnapshot, 0, len(snapshots))
	for i, snap := range snapshots {
		snap.Name = strings.TrimSpace(snap.Name)
		if snap.Name == "" {
			return nil, fmt.Errorf("%w: search_results[%d] is missing a name", apperrors.ErrValidation, i)
		}
		if snap.SimilarityScore < 0 {
			snap.SimilarityScore = 0
		}
		normalized = append(normalized, snap)
	}
	return normalized, nil
}

func (s *requestService) Get(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", apperrors.ErrNotFound, requestID)
	}
	return request, nil
}

func (s *requestService) List(ctx context.Context, status string, limit int) ([]*models.Request, error) {
	if status != "" && status != models.RequestStatusPending && status != models.RequestStatusApproved && status != models.RequestStatusRejected {
		return nil, fmt.Errorf("%w: invalid request status %q", apperrors.ErrValidation, status)
	}
	return s.repo.List(ctx, status, limit)
}

func (s *requestService) Review(ctx context.Context, requestID uuid.UUID, approve bool, notes *string, proposal *CreateProposalInput) (*ReviewRequestResult, error) {
	principal, ok := models.GetPrincipal(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", apperrors.ErrNotFound, requestID)
	}
	if !principal.CanReview() {
		return nil, fmt.Errorf("%w: reviewing requests requires reviewer or admin role", apperrors.ErrForbidden)
	}
	if request.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request is already %s", apperrors.ErrConflict, request.Status)
	}

	status := models.RequestStatusRejected
	eventType := models.EventRequestRejected
	if approve {
		status = models.RequestStatusApproved
		eventType = models.EventRequestApproved
	}

	won, err := s.repo.ReviewConditional(ctx, requestID, status, principal.UserID, notes)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: request was reviewed concurrently", apperrors.ErrConflict)
	}

	s.audit.Record(ctx, principal.OrgID, principal.UserID, eventType,
		models.ResourceTypeRequest, requestID, nil)

	result := &ReviewRequestResult{}

	// The review is already committed. A chained proposal that fails leaves
	// the request approved; the reviewer creates the proposal manually.
	if approve && proposal != nil {
		proposal.RequestID = &requestID
		created, err := s.proposals.Create(ctx, proposal)
		if err != nil {
			s.logger.Warn("Chained proposal creation failed after request approval",
				zap.String("request_id", requestID.String()),
				zap.Error(err))
		} else {
			result.Proposal = created
		}
	}

	updated, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	result.Request = updated

	return result, nil
}
