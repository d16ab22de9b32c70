package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/models"
)

// TenantMiddleware acquires an org-scoped database connection per request.
// It must run after auth middleware so the Principal is already resolved.
type TenantMiddleware struct {
	db     *DB
	logger *zap.Logger
}

// NewTenantMiddleware creates a middleware bound to the given pool.
func NewTenantMiddleware(db *DB, logger *zap.Logger) *TenantMiddleware {
	return &TenantMiddleware{
		db:     db,
		logger: logger,
	}
}

// WithTenantScope acquires a connection with app.current_org_id set to the
// principal's org, stores the scope in the request context, and releases it
// when the handler returns. Repositories read the scope from context.
func (m *TenantMiddleware) WithTenantScope(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := models.GetPrincipal(r.Context())
		if !ok {
			m.logger.Error("Tenant middleware invoked without principal",
				zap.String("path", r.URL.Path))
			m.serviceError(w, "Request is not authenticated")
			return
		}

		scope, err := m.db.WithOrg(r.Context(), principal.OrgID)
		if err != nil {
			m.logger.Error("Failed to acquire tenant-scoped connection",
				zap.String("org_id", principal.OrgID.String()),
				zap.Error(err))
			m.serviceError(w, "Database unavailable")
			return
		}
		defer scope.Close()

		ctx := SetTenantScope(r.Context(), scope)
		next(w, r.WithContext(ctx))
	}
}

// serviceError returns a 503 response with JSON error body.
func (m *TenantMiddleware) serviceError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "service_unavailable",
		"message": message,
	})
}
