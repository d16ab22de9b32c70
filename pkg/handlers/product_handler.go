package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/auth"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// EnrichRequest for POST /api/products/enrich
type EnrichRequest struct {
	ProductName string `json:"product_name"`
}

// EnrichBatchRequest for POST /api/products/enrich-batch
type EnrichBatchRequest struct {
	ProductNames []string `json:"product_names"`
}

// EnrichBatchResponse for POST /api/products/enrich-batch
type EnrichBatchResponse struct {
	Products []*models.EnrichedProduct `json:"products"`
	Total    int                       `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// ProductHandler handles AI product enrichment HTTP requests.
type ProductHandler struct {
	enrichmentService services.EnrichmentService
	logger            *zap.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(enrichmentService services.EnrichmentService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		enrichmentService: enrichmentService,
		logger:            logger,
	}
}

// RegisterRoutes registers the product handler's routes on the given mux.
// Enrichment never touches org data, so no tenant scope is needed.
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/products/enrich",
		authMiddleware.RequireAuth(h.Enrich))
	mux.HandleFunc("POST /api/products/enrich-batch",
		authMiddleware.RequireAuth(h.EnrichBatch))
}

// Enrich handles POST /api/products/enrich
func (h *ProductHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.enrichmentService.Enrich(r.Context(), req.ProductName)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, product); err != nil {
		h.logger.Error("Failed to write enrichment response", zap.Error(err))
	}
}

// EnrichBatch handles POST /api/products/enrich-batch
func (h *ProductHandler) EnrichBatch(w http.ResponseWriter, r *http.Request) {
	var req EnrichBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	products, err := h.enrichmentService.EnrichBatch(r.Context(), req.ProductNames)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	response := EnrichBatchResponse{Products: products, Total: len(products)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write batch enrichment response", zap.Error(err))
	}
}
