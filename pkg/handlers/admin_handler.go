package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/auth"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// AuditLogResponse for GET /api/admin/audit-log
type AuditLogResponse struct {
	Events []*models.AuditEvent `json:"events"`
	Total  int                  `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// AdminHandler handles admin-only HTTP requests: audit log reads and
// embedding integrity repair.
type AdminHandler struct {
	auditService   services.AuditService
	catalogService services.CatalogService
	logger         *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(auditService services.AuditService, catalogService services.CatalogService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		auditService:   auditService,
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the admin handler's routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenant TenantMiddleware) {
	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("GET /api/admin/audit-log",
		authMiddleware.RequireAuth(adminOnly(tenant(h.AuditLog))))
	mux.HandleFunc("POST /api/admin/embeddings/check",
		authMiddleware.RequireAuth(adminOnly(tenant(h.CheckEmbeddings))))
}

// AuditLog handles GET /api/admin/audit-log
// Optional filters: event_type, resource_type, resource_id, limit.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	query := &models.AuditQuery{
		Limit:        parseIntQuery(r, "limit", 0),
		EventType:    r.URL.Query().Get("event_type"),
		ResourceType: r.URL.Query().Get("resource_type"),
	}

	if raw := r.URL.Query().Get("resource_id"); raw != "" {
		resourceID, err := uuid.Parse(raw)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid resource_id")
			return
		}
		query.ResourceID = &resourceID
	}

	events, err := h.auditService.Query(r.Context(), query)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if events == nil {
		events = []*models.AuditEvent{}
	}

	response := AuditLogResponse{Events: events, Total: len(events)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write audit log response", zap.Error(err))
	}
}

// CheckEmbeddings handles POST /api/admin/embeddings/check
// Repairs missing embedding rows and returns the repair report.
func (h *AdminHandler) CheckEmbeddings(w http.ResponseWriter, r *http.Request) {
	report, err := h.catalogService.RepairEmbeddings(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write repair report response", zap.Error(err))
	}
}
