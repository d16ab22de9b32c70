package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/auth"
	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/services"
)

// TenantMiddleware wraps a handler with an org-scoped database connection.
type TenantMiddleware = func(http.HandlerFunc) http.HandlerFunc

// defaultSearchThreshold is the minimum similarity applied when the caller
// does not set one.
const defaultSearchThreshold = 0.3

// ============================================================================
// Request/Response Types
// ============================================================================

// SearchResponse for GET /api/catalog/search
type SearchResponse struct {
	Query   string                     `json:"query"`
	Results []*models.CatalogSearchHit `json:"results"`
	Total   int                        `json:"total"`
}

// ItemListResponse for GET /api/catalog/items
type ItemListResponse struct {
	Items []*models.CatalogItem `json:"items"`
	Total int                   `json:"total"`
}

// CreateItemRequest for POST /api/catalog/items
type CreateItemRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	PricingType *string        `json:"pricing_type,omitempty"`
	ProductURL  *string        `json:"product_url,omitempty"`
	Vendor      *string        `json:"vendor,omitempty"`
	SKU         *string        `json:"sku,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RequestNewItemRequest for POST /api/catalog/request-new-item. With
// use_ai_enrichment set, only the name is required; enrichment fills the
// rest and explicit fields override it.
type RequestNewItemRequest struct {
	Name            string         `json:"name"`
	Description     *string        `json:"description,omitempty"`
	Category        *string        `json:"category,omitempty"`
	Price           *float64       `json:"price,omitempty"`
	PricingType     *string        `json:"pricing_type,omitempty"`
	ProductURL      *string        `json:"product_url,omitempty"`
	Vendor          *string        `json:"vendor,omitempty"`
	SKU             *string        `json:"sku,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Justification   *string        `json:"justification,omitempty"`
	UseAIEnrichment bool           `json:"use_ai_enrichment,omitempty"`
}

// RequestNewItemResponse for POST /api/catalog/request-new-item
type RequestNewItemResponse struct {
	Message      string                  `json:"message"`
	Proposal     *models.Proposal        `json:"proposal"`
	AIEnrichment *models.EnrichedProduct `json:"ai_enrichment,omitempty"`
}

// UpdateItemRequest for PATCH /api/catalog/items/{id}
type UpdateItemRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	PricingType *string        `json:"pricing_type,omitempty"`
	ProductURL  *string        `json:"product_url,omitempty"`
	Vendor      *string        `json:"vendor,omitempty"`
	SKU         *string        `json:"sku,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      *string        `json:"status,omitempty"`
}

// ============================================================================
// Handler
// ============================================================================

// CatalogHandler handles catalog search and item HTTP requests, plus the
// member-facing request-new-item flow that funnels into a proposal.
type CatalogHandler struct {
	catalogService    services.CatalogService
	proposalService   services.ProposalService
	enrichmentService services.EnrichmentService
	logger            *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogService services.CatalogService, proposalService services.ProposalService, enrichmentService services.EnrichmentService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService:    catalogService,
		proposalService:   proposalService,
		enrichmentService: enrichmentService,
		logger:            logger,
	}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
// Direct item writes bypass the proposal workflow and are admin-only.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenant TenantMiddleware) {
	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("GET /api/catalog/search",
		authMiddleware.RequireAuth(tenant(h.Search)))
	mux.HandleFunc("POST /api/catalog/request-new-item",
		authMiddleware.RequireAuth(tenant(h.RequestNewItem)))
	mux.HandleFunc("GET /api/catalog/items",
		authMiddleware.RequireAuth(tenant(h.List)))
	mux.HandleFunc("GET /api/catalog/items/{id}",
		authMiddleware.RequireAuth(tenant(h.Get)))
	mux.HandleFunc("POST /api/catalog/items",
		authMiddleware.RequireAuth(adminOnly(tenant(h.Create))))
	mux.HandleFunc("PATCH /api/catalog/items/{id}",
		authMiddleware.RequireAuth(adminOnly(tenant(h.Update))))
}

// Search handles GET /api/catalog/search?q=...&threshold=...&limit=...
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	threshold := parseFloatQuery(r, "threshold", defaultSearchThreshold)
	limit := parseIntQuery(r, "limit", 0)

	hits, err := h.catalogService.Search(r.Context(), query, threshold, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if hits == nil {
		hits = []*models.CatalogSearchHit{}
	}

	response := SearchResponse{
		Query:   query,
		Results: hits,
		Total:   len(hits),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write search response", zap.Error(err))
	}
}

// List handles GET /api/catalog/items
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 0)

	items, err := h.catalogService.List(r.Context(), status, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if items == nil {
		items = []*models.CatalogItem{}
	}

	response := ItemListResponse{Items: items, Total: len(items)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write item list response", zap.Error(err))
	}
}

// Get handles GET /api/catalog/items/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	item, err := h.catalogService.Get(r.Context(), itemID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, item); err != nil {
		h.logger.Error("Failed to write item response", zap.Error(err))
	}
}

// Create handles POST /api/catalog/items
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, err := h.catalogService.Create(r.Context(), &models.NewCatalogItemInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		PricingType: req.PricingType,
		ProductURL:  req.ProductURL,
		Vendor:      req.Vendor,
		SKU:         req.SKU,
		Metadata:    req.Metadata,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, item); err != nil {
		h.logger.Error("Failed to write created item response", zap.Error(err))
	}
}

// Update handles PATCH /api/catalog/items/{id}
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, err := h.catalogService.Update(r.Context(), itemID, &models.CatalogItemUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		PricingType: req.PricingType,
		ProductURL:  req.ProductURL,
		Vendor:      req.Vendor,
		SKU:         req.SKU,
		Metadata:    req.Metadata,
		Status:      req.Status,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, item); err != nil {
		h.logger.Error("Failed to write updated item response", zap.Error(err))
	}
}

// RequestNewItem handles POST /api/catalog/request-new-item
// Members use this when search comes up empty: it creates an ADD_ITEM
// proposal for reviewers, optionally pre-filled by AI enrichment.
func (h *CatalogHandler) RequestNewItem(w http.ResponseWriter, r *http.Request) {
	var req RequestNewItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "item name is required")
		return
	}

	input := &services.CreateProposalInput{
		ProposalType:    models.ProposalTypeAddItem,
		ItemName:        &req.Name,
		ItemDescription: req.Description,
		ItemCategory:    req.Category,
		ItemMetadata:    req.Metadata,
		ItemPrice:       req.Price,
		ItemPricingType: req.PricingType,
		ItemProductURL:  req.ProductURL,
		ItemVendor:      req.Vendor,
		ItemSKU:         req.SKU,
	}

	var enriched *models.EnrichedProduct
	if req.UseAIEnrichment {
		var err error
		enriched, err = h.enrichmentService.Enrich(r.Context(), req.Name)
		if err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}
		applyEnrichment(input, enriched)
	}

	proposal, err := h.proposalService.SubmitNewItem(r.Context(), input)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	response := RequestNewItemResponse{
		Message:      "New item request submitted for review",
		Proposal:     proposal,
		AIEnrichment: enriched,
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write new item request response", zap.Error(err))
	}
}

// applyEnrichment fills the fields the caller left empty from the enriched
// product. Explicit caller values always win.
func applyEnrichment(input *services.CreateProposalInput, enriched *models.EnrichedProduct) {
	if input.ItemDescription == nil && enriched.Description != "" {
		input.ItemDescription = &enriched.Description
	}
	if input.ItemCategory == nil && enriched.Category != "" {
		input.ItemCategory = &enriched.Category
	}
	if input.ItemVendor == nil && enriched.Vendor != "" {
		input.ItemVendor = &enriched.Vendor
	}
	if input.ItemPrice == nil {
		input.ItemPrice = enriched.Price
	}
	if input.ItemPricingType == nil {
		input.ItemPricingType = enriched.PricingType
	}
	if input.ItemProductURL == nil {
		input.ItemProductURL = enriched.ProductURL
	}
	if input.ItemSKU == nil {
		input.ItemSKU = enriched.SKU
	}
	if input.ItemMetadata == nil {
		input.ItemMetadata = map[string]any{}
		for k, v := range enriched.Metadata {
			input.ItemMetadata[k] = v
		}
	}
	input.ItemMetadata["ai_enriched"] = true
	input.ItemMetadata["ai_confidence"] = enriched.Confidence
}

// ============================================================================
// Shared helpers
// ============================================================================

// parsePathUUID parses a UUID path parameter, writing a 400 on failure.
func parsePathUUID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Debug("Invalid UUID path parameter",
			zap.String("param", name),
			zap.String("value", raw))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseIntQuery parses an integer query parameter with a fallback.
func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// parseFloatQuery parses a float query parameter with a fallback.
func parseFloatQuery(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}
