package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
)

func strPtr(s string) *string { return &s }

func newProposalFixture() (*proposalService, *mockProposalRepository, *mockCatalogRepository, *mockEmbedder, *mockAuditRepo) {
	repo := newMockProposalRepository()
	catalog := newMockCatalogRepository()
	embedder := newMockEmbedder()
	auditRepo := &mockAuditRepo{}
	audit := NewAuditService(auditRepo, zap.NewNop())
	svc := NewProposalService(repo, catalog, embedder, audit, zap.NewNop()).(*proposalService)
	return svc, repo, catalog, embedder, auditRepo
}

func pendingAddProposal(t *testing.T, svc *proposalService, ctx context.Context) *models.Proposal {
	t.Helper()
	proposal, err := svc.Create(ctx, &CreateProposalInput{
		ProposalType:    models.ProposalTypeAddItem,
		ItemName:        strPtr("Slack"),
		ItemDescription: strPtr("Team messaging platform"),
		ItemCategory:    strPtr("Communication"),
	})
	require.NoError(t, err)
	return proposal
}

func TestProposalCreateValidation(t *testing.T) {
	svc, _, catalog, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleReviewer)

	tests := []struct {
		name  string
		input *CreateProposalInput
	}{
		{
			name:  "invalid type",
			input: &CreateProposalInput{ProposalType: "RENAME_ITEM"},
		},
		{
			name: "add without name",
			input: &CreateProposalInput{
				ProposalType:    models.ProposalTypeAddItem,
				ItemDescription: strPtr("desc"),
			},
		},
		{
			name: "add without description",
			input: &CreateProposalInput{
				ProposalType: models.ProposalTypeAddItem,
				ItemName:     strPtr("Slack"),
			},
		},
		{
			name: "deprecate without target",
			input: &CreateProposalInput{
				ProposalType: models.ProposalTypeDeprecateItem,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	t.Run("deprecate with unknown target", func(t *testing.T) {
		unknown := uuid.New()
		_, err := svc.Create(ctx, &CreateProposalInput{
			ProposalType:    models.ProposalTypeDeprecateItem,
			ReplacingItemID: &unknown,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("deprecate already-deprecated target", func(t *testing.T) {
		item := &models.CatalogItem{ID: uuid.New(), Status: models.ItemStatusDeprecated}
		catalog.items[item.ID] = item
		_, err := svc.Create(ctx, &CreateProposalInput{
			ProposalType:    models.ProposalTypeDeprecateItem,
			ReplacingItemID: &item.ID,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestProposalCreateRequiresReviewerRole(t *testing.T) {
	svc, _, _, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleMember)

	_, err := svc.Create(ctx, &CreateProposalInput{
		ProposalType:    models.ProposalTypeAddItem,
		ItemName:        strPtr("Slack"),
		ItemDescription: strPtr("Team messaging platform"),
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSubmitNewItemAllowsMembers(t *testing.T) {
	svc, _, _, _, auditRepo := newProposalFixture()
	ctx, principal := principalContext(models.RoleMember)

	proposal, err := svc.SubmitNewItem(ctx, &CreateProposalInput{
		ItemName:        strPtr("MacBook Pro 16"),
		ItemDescription: strPtr("Laptop for the design team"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalTypeAddItem, proposal.ProposalType)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)
	assert.Equal(t, principal.UserID, proposal.ProposedBy)
	require.Len(t, auditRepo.events, 1)
	assert.Equal(t, models.EventProposalCreated, auditRepo.events[0].EventType)
}

func TestSubmitNewItemForcesAddItemType(t *testing.T) {
	svc, _, _, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleMember)

	target := uuid.New()
	proposal, err := svc.SubmitNewItem(ctx, &CreateProposalInput{
		ProposalType:    models.ProposalTypeDeprecateItem,
		ItemName:        strPtr("Slack"),
		ItemDescription: strPtr("Team messaging platform"),
		ReplacingItemID: &target,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalTypeAddItem, proposal.ProposalType)
	assert.Nil(t, proposal.ReplacingItemID, "members cannot target existing items")
}

func TestSubmitNewItemStillValidates(t *testing.T) {
	svc, _, _, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleMember)

	_, err := svc.SubmitNewItem(ctx, &CreateProposalInput{
		ItemDescription: strPtr("no name"),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProposalReviewApproveAddItem(t *testing.T) {
	svc, repo, _, embedder, auditRepo := newProposalFixture()
	ctx, _ := principalContext(models.RoleReviewer)

	proposal := pendingAddProposal(t, svc, ctx)

	result, err := svc.Review(ctx, proposal.ID, true, strPtr("looks good"))
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusMerged, result.Proposal.Status)
	require.NotNil(t, result.ItemID)
	assert.Equal(t, 1, repo.mergeCalls)

	// Embedding computed from the proposal's canonical text before the merge
	require.NotEmpty(t, embedder.calls)
	assert.Equal(t, "Slack | Category: Communication | Team messaging platform", embedder.calls[len(embedder.calls)-1])

	var merged bool
	for _, e := range auditRepo.events {
		if e.EventType == models.EventProposalMerged {
			merged = true
		}
	}
	assert.True(t, merged, "merge must be audited")
}

func TestProposalReviewReject(t *testing.T) {
	svc, _, _, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleAdmin)

	proposal := pendingAddProposal(t, svc, ctx)

	result, err := svc.Review(ctx, proposal.ID, false, strPtr("duplicate"))
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, result.Proposal.Status)
	assert.Nil(t, result.ItemID)
}

func TestProposalReviewGuards(t *testing.T) {
	svc, _, _, _, _ := newProposalFixture()
	reviewerCtx, _ := principalContext(models.RoleReviewer)

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Review(reviewerCtx, uuid.New(), true, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("member cannot review", func(t *testing.T) {
		proposal := pendingAddProposal(t, svc, reviewerCtx)
		memberCtx, _ := principalContext(models.RoleMember)
		_, err := svc.Review(memberCtx, proposal.ID, true, nil)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("double review conflicts", func(t *testing.T) {
		proposal := pendingAddProposal(t, svc, reviewerCtx)
		_, err := svc.Review(reviewerCtx, proposal.ID, true, nil)
		require.NoError(t, err)

		_, err = svc.Review(reviewerCtx, proposal.ID, false, nil)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestProposalReviewLostRaceIsConflict(t *testing.T) {
	svc, repo, _, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleReviewer)

	proposal := pendingAddProposal(t, svc, ctx)

	// Simulate a concurrent reviewer winning between the status check and
	// the conditional merge.
	repo.forceLostRace = true

	_, err := svc.Review(ctx, proposal.ID, true, nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestProposalReviewEmbeddingFailureLeavesProposalPending(t *testing.T) {
	svc, repo, _, embedder, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleReviewer)

	proposal := pendingAddProposal(t, svc, ctx)
	embedder.err = errors.New("provider down")

	_, err := svc.Review(ctx, proposal.ID, true, nil)
	require.Error(t, err)

	// No merge call happened, so no item was created and the proposal can
	// be retried.
	assert.Equal(t, 0, repo.mergeCalls)
	stored, _ := repo.GetByID(ctx, proposal.ID)
	assert.Equal(t, models.ProposalStatusPending, stored.Status)
}

func TestProposalReviewDeprecate(t *testing.T) {
	svc, _, catalog, _, _ := newProposalFixture()
	ctx, _ := principalContext(models.RoleReviewer)

	item := &models.CatalogItem{ID: uuid.New(), Status: models.ItemStatusActive}
	catalog.items[item.ID] = item

	proposal, err := svc.Create(ctx, &CreateProposalInput{
		ProposalType:    models.ProposalTypeDeprecateItem,
		ReplacingItemID: &item.ID,
	})
	require.NoError(t, err)

	result, err := svc.Review(ctx, proposal.ID, true, nil)
	require.NoError(t, err)
	require.NotNil(t, result.ItemID)
	assert.Equal(t, item.ID, *result.ItemID)
}
