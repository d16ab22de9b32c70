package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// RequestRepository provides data access for new-item requests.
type RequestRepository interface {
	// Create inserts a pending request.
	Create(ctx context.Context, request *models.Request) error

	// GetByID returns a single request, or nil if it does not exist.
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error)

	// List returns requests for the org, optionally filtered by status.
	List(ctx context.Context, status string, limit int) ([]*models.Request, error)

	// ReviewConditional transitions a pending request to the given terminal
	// status. Returns false when the request was not pending anymore, which
	// callers surface as a conflict.
	ReviewConditional(ctx context.Context, requestID uuid.UUID, status string, reviewerID uuid.UUID, notes *string) (bool, error)
}

type requestRepository struct{}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository() RequestRepository {
	return &requestRepository{}
}

var _ RequestRepository = (*requestRepository)(nil)

const requestColumns = `id, org_id, created_by, search_query, search_results,
	       justification, status, reviewed_by, review_notes, reviewed_at, created_at`

func (r *requestRepository) Create(ctx context.Context, request *models.Request) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	snapshots, err := json.Marshal(request.SearchResults)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	query := `
		INSERT INTO requests (org_id, created_by, search_query, search_results, justification, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = scope.Conn.QueryRow(ctx, query,
		request.OrgID,
		request.CreatedBy,
		request.SearchQuery,
		snapshots,
		request.Justification,
		request.Status,
		time.Now(),
	).Scan(&request.ID, &request.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, requestID)
	return scanRequest(row)
}

func (r *requestRepository) List(ctx context.Context, status string, limit int) ([]*models.Request, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		request, err := scanRequestFromRows(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}

func (r *requestRepository) ReviewConditional(ctx context.Context, requestID uuid.UUID, status string, reviewerID uuid.UUID, notes *string) (bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return false, fmt.Errorf("no tenant scope in context")
	}

	// Conditional on status so a concurrent review loses cleanly instead
	// of overwriting the winner.
	query := `
		UPDATE requests
		SET status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'`

	result, err := scope.Conn.Exec(ctx, query, requestID, status, reviewerID, notes, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to review request: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Helper functions

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	var snapshots []byte
	err := row.Scan(
		&req.ID,
		&req.OrgID,
		&req.CreatedBy,
		&req.SearchQuery,
		&snapshots,
		&req.Justification,
		&req.Status,
		&req.ReviewedBy,
		&req.ReviewNotes,
		&req.ReviewedAt,
		&req.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	if err := unmarshalSnapshots(snapshots, &req.SearchResults); err != nil {
		return nil, err
	}
	return &req, nil
}

func scanRequestFromRows(rows pgx.Rows) (*models.Request, error) {
	var req models.Request
	var snapshots []byte
	err := rows.Scan(
		&req.ID,
		&req.OrgID,
		&req.CreatedBy,
		&req.SearchQuery,
		&snapshots,
		&req.Justification,
		&req.Status,
		&req.ReviewedBy,
		&req.ReviewNotes,
		&req.ReviewedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	if err := unmarshalSnapshots(snapshots, &req.SearchResults); err != nil {
		return nil, err
	}
	return &req, nil
}

func unmarshalSnapshots(raw []byte, target *[]models.SearchResultSnapshot) error {
	if len(raw) == 0 || string(raw) == "null" {
		*target = []models.SearchResultSnapshot{}
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal search results: %w", err)
	}
	return nil
}
