package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// MembershipRepository resolves org memberships. It runs before tenant
// scoping (auth middleware needs it to pick the org), so it queries the
// pool directly instead of a tenant-scoped connection.
type MembershipRepository interface {
	// FirstForUser returns the user's earliest membership by creation time.
	FirstForUser(ctx context.Context, userID string) (*models.Membership, error)
}

type membershipRepository struct {
	db *database.DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *database.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

var _ MembershipRepository = (*membershipRepository)(nil)

func (r *membershipRepository) FirstForUser(ctx context.Context, userID string) (*models.Membership, error) {
	query := `
		SELECT id, org_id, user_id, role, created_at
		FROM org_memberships
		WHERE user_id = $1
		ORDER BY created_at ASC
		LIMIT 1`

	var m models.Membership
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&m.ID,
		&m.OrgID,
		&m.UserID,
		&m.Role,
		&m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: no membership for user", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	return &m, nil
}
