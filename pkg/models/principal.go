package models

import (
	"context"

	"github.com/google/uuid"
)

// Roles within an org. A principal holds exactly one role per org.
const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
	RoleMember   = "member"
)

// Principal is an authenticated caller resolved to its org membership.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   string
}

// CanReview reports whether the principal may review requests and proposals.
func (p *Principal) CanReview() bool {
	return p.Role == RoleAdmin || p.Role == RoleReviewer
}

type principalContextKey struct{}

// WithPrincipal stores the authenticated principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}
