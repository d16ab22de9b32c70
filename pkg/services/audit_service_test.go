package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/models"
)

func TestAuditRecord(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop())

	orgID := uuid.New()
	actorID := uuid.New()
	resourceID := uuid.New()

	svc.Record(context.Background(), orgID, actorID, models.EventProposalMerged,
		models.ResourceTypeProposal, resourceID, map[string]any{"item_id": "x"})

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, orgID, event.OrgID)
	assert.Equal(t, actorID, event.ActorID)
	assert.Equal(t, models.EventProposalMerged, event.EventType)
	assert.Equal(t, resourceID, event.ResourceID)
}

func TestAuditRecordSwallowsFailures(t *testing.T) {
	repo := &mockAuditRepo{insertErr: errors.New("audit table gone")}
	svc := NewAuditService(repo, zap.NewNop())

	// Must not panic and must not propagate the error.
	svc.Record(context.Background(), uuid.New(), uuid.New(), models.EventRequestCreated,
		models.ResourceTypeRequest, uuid.New(), nil)

	assert.Empty(t, repo.events)
}

func TestAuditQueryFilters(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, zap.NewNop())

	orgID := uuid.New()
	actorID := uuid.New()
	requestID := uuid.New()
	proposalID := uuid.New()

	svc.Record(context.Background(), orgID, actorID, models.EventRequestCreated, models.ResourceTypeRequest, requestID, nil)
	svc.Record(context.Background(), orgID, actorID, models.EventProposalCreated, models.ResourceTypeProposal, proposalID, nil)
	svc.Record(context.Background(), orgID, actorID, models.EventProposalMerged, models.ResourceTypeProposal, proposalID, nil)

	events, err := svc.Query(context.Background(), &models.AuditQuery{ResourceType: models.ResourceTypeProposal})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = svc.Query(context.Background(), &models.AuditQuery{
		ResourceType: models.ResourceTypeProposal,
		EventType:    models.EventProposalMerged,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = svc.Query(context.Background(), &models.AuditQuery{ResourceID: &requestID})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
