package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
)

func newRequestFixture() (*requestService, *mockRequestRepository, *mockProposalRepository, *mockAuditRepo) {
	repo := newMockRequestRepository()
	proposalRepo := newMockProposalRepository()
	auditRepo := &mockAuditRepo{}
	audit := NewAuditService(auditRepo, zap.NewNop())
	proposals := NewProposalService(proposalRepo, newMockCatalogRepository(), newMockEmbedder(), audit, zap.NewNop())
	svc := NewRequestService(repo, proposals, audit, zap.NewNop()).(*requestService)
	return svc, repo, proposalRepo, auditRepo
}

func TestRequestCreate(t *testing.T) {
	svc, _, _, auditRepo := newRequestFixture()
	ctx, principal := principalContext(models.RoleMember)

	itemID := uuid.New()
	request, err := svc.Create(ctx, &CreateRequestInput{
		SearchQuery: "  video conferencing tool ",
		SearchResults: []models.SearchResultSnapshot{
			{Name: "Zoom", ItemID: &itemID, SimilarityScore: 0.82},
			{Name: " Google Meet "},
		},
		Justification: strPtr("nothing close enough"),
	})
	require.NoError(t, err)

	assert.Equal(t, "video conferencing tool", request.SearchQuery)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, principal.OrgID, request.OrgID)
	require.Len(t, request.SearchResults, 2)
	assert.Equal(t, "Google Meet", request.SearchResults[1].Name)
	assert.Zero(t, request.SearchResults[1].SimilarityScore)

	require.Len(t, auditRepo.events, 1)
	assert.Equal(t, models.EventRequestCreated, auditRepo.events[0].EventType)
}

func TestRequestCreateEmptySearchResultsIsLegitimate(t *testing.T) {
	svc, _, _, _ := newRequestFixture()
	ctx, _ := principalContext(models.RoleMember)

	request, err := svc.Create(ctx, &CreateRequestInput{SearchQuery: "obscure internal tool"})
	require.NoError(t, err)
	assert.NotNil(t, request.SearchResults)
	assert.Empty(t, request.SearchResults)
}

func TestRequestCreateValidation(t *testing.T) {
	svc, _, _, _ := newRequestFixture()
	ctx, _ := principalContext(models.RoleMember)

	_, err := svc.Create(ctx, &CreateRequestInput{SearchQuery: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Create(ctx, &CreateRequestInput{
		SearchQuery:   "crm",
		SearchResults: []models.SearchResultSnapshot{{Name: "  "}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRequestReviewApprove(t *testing.T) {
	svc, _, _, _ := newRequestFixture()
	memberCtx, _ := principalContext(models.RoleMember)
	reviewerCtx, _ := principalContext(models.RoleReviewer)

	request, err := svc.Create(memberCtx, &CreateRequestInput{SearchQuery: "crm"})
	require.NoError(t, err)

	result, err := svc.Review(reviewerCtx, request.ID, true, strPtr("approved"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, result.Request.Status)
	assert.Nil(t, result.Proposal)
}

func TestRequestReviewChainsProposal(t *testing.T) {
	svc, _, proposalRepo, _ := newRequestFixture()
	reviewerCtx, _ := principalContext(models.RoleReviewer)

	request, err := svc.Create(reviewerCtx, &CreateRequestInput{SearchQuery: "crm"})
	require.NoError(t, err)

	result, err := svc.Review(reviewerCtx, request.ID, true, nil, &CreateProposalInput{
		ProposalType:    models.ProposalTypeAddItem,
		ItemName:        strPtr("Salesforce"),
		ItemDescription: strPtr("CRM platform"),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Proposal)
	require.NotNil(t, result.Proposal.RequestID)
	assert.Equal(t, request.ID, *result.Proposal.RequestID)
	assert.Len(t, proposalRepo.proposals, 1)
}

func TestRequestReviewChainedProposalFailureKeepsApproval(t *testing.T) {
	svc, repo, _, _ := newRequestFixture()
	reviewerCtx, _ := principalContext(models.RoleReviewer)

	request, err := svc.Create(reviewerCtx, &CreateRequestInput{SearchQuery: "crm"})
	require.NoError(t, err)

	// Invalid proposal input: the chained creation fails validation but the
	// approval itself must stand.
	result, err := svc.Review(reviewerCtx, request.ID, true, nil, &CreateProposalInput{
		ProposalType: "BOGUS",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Proposal)
	assert.Equal(t, models.RequestStatusApproved, result.Request.Status)

	stored, _ := repo.GetByID(reviewerCtx, request.ID)
	assert.Equal(t, models.RequestStatusApproved, stored.Status)
}

func TestRequestReviewGuards(t *testing.T) {
	svc, _, _, _ := newRequestFixture()
	reviewerCtx, _ := principalContext(models.RoleReviewer)

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Review(reviewerCtx, uuid.New(), true, nil, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("member cannot review", func(t *testing.T) {
		request, err := svc.Create(reviewerCtx, &CreateRequestInput{SearchQuery: "crm"})
		require.NoError(t, err)

		memberCtx, _ := principalContext(models.RoleMember)
		_, err = svc.Review(memberCtx, request.ID, true, nil, nil)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("double review conflicts", func(t *testing.T) {
		request, err := svc.Create(reviewerCtx, &CreateRequestInput{SearchQuery: "crm"})
		require.NoError(t, err)

		_, err = svc.Review(reviewerCtx, request.ID, false, nil, nil)
		require.NoError(t, err)

		_, err = svc.Review(reviewerCtx, request.ID, true, nil, nil)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}
