package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/repositories"
)

// AuditService records and queries append-only audit events.
type AuditService interface {
	// Record appends an audit event. Failures are logged and swallowed;
	// audit writes never fail the operation being audited.
	Record(ctx context.Context, orgID, actorID uuid.UUID, eventType, resourceType string, resourceID uuid.UUID, metadata map[string]any)

	// Query returns events matching the filters, newest first.
	Query(ctx context.Context, query *models.AuditQuery) ([]*models.AuditEvent, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, orgID, actorID uuid.UUID, eventType, resourceType string, resourceID uuid.UUID, metadata map[string]any) {
	event := &models.AuditEvent{
		OrgID:        orgID,
		EventType:    eventType,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Warn("Failed to record audit event",
			zap.String("event_type", eventType),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID.String()),
			zap.Error(err))
	}
}

func (s *auditService) Query(ctx context.Context, query *models.AuditQuery) ([]*models.AuditEvent, error) {
	return s.repo.Query(ctx, query)
}
