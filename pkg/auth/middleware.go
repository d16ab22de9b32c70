package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/models"
)

// MembershipResolver resolves a user's organization membership.
// Implemented by repositories.MembershipRepository.
type MembershipResolver interface {
	// FirstForUser returns the user's earliest membership, or
	// apperrors.ErrNotFound if the user belongs to no organization.
	FirstForUser(ctx context.Context, userID string) (*models.Membership, error)
}

// Middleware provides HTTP authentication middleware.
// It is thin and delegates token validation to AuthService; the resolved
// membership becomes the request's Principal.
type Middleware struct {
	authService AuthService
	memberships MembershipResolver
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, memberships MembershipResolver, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		memberships: memberships,
		logger:      logger,
	}
}

// RequireAuth validates the bearer JWT and resolves the caller's org
// membership. A valid token without any membership is rejected with 403.
// Sets claims, token and the Principal in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		userID, err := UserIDFromClaims(claims)
		if err != nil {
			m.unauthorized(w, "Invalid token subject")
			return
		}

		membership, err := m.memberships.FirstForUser(r.Context(), userID.String())
		if err != nil {
			m.logger.Warn("Authenticated user has no org membership",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			m.forbidden(w, "No organization membership")
			return
		}

		principal := &models.Principal{
			UserID: userID,
			OrgID:  membership.OrgID,
			Role:   membership.Role,
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		ctx = models.WithPrincipal(ctx, principal)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole wraps a handler and rejects callers whose role is not in the
// allowed set. Must run after RequireAuth.
func (m *Middleware) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := models.GetPrincipal(r.Context())
			if !ok {
				m.unauthorized(w, "Authentication required")
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				m.logger.Warn("Role not permitted for endpoint",
					zap.String("role", principal.Role),
					zap.String("path", r.URL.Path))
				m.forbidden(w, "Insufficient role")
				return
			}
			next(w, r)
		}
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
