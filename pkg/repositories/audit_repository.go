package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// AuditRepository provides append-only data access for audit events.
type AuditRepository interface {
	// Insert appends a single audit event.
	Insert(ctx context.Context, event *models.AuditEvent) error

	// Query returns events matching the AND-combined filters, newest first.
	Query(ctx context.Context, q *models.AuditQuery) ([]*models.AuditEvent, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		INSERT INTO audit_events (org_id, event_type, actor_id, resource_type, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		event.OrgID,
		event.EventType,
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		jsonbValueMap(event.Metadata),
		time.Now(),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

func (r *auditRepository) Query(ctx context.Context, q *models.AuditQuery) ([]*models.AuditEvent, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, org_id, event_type, actor_id, resource_type, resource_id, metadata, created_at
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR resource_type = $2)
		  AND ($3::uuid IS NULL OR resource_id = $3)
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := scope.Conn.Query(ctx, query, q.EventType, q.ResourceType, q.ResourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	return scanAuditEvents(rows)
}

func scanAuditEvents(rows pgx.Rows) ([]*models.AuditEvent, error) {
	var events []*models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var metadata []byte
		err := rows.Scan(
			&e.ID,
			&e.OrgID,
			&e.EventType,
			&e.ActorID,
			&e.ResourceType,
			&e.ResourceID,
			&metadata,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := unmarshalMetadata(metadata, &e.Metadata); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}
