package handlers

import (
	"encoding/json"
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

// ProposalPayload is the wire shape of a proposal, shared by direct creation
// and the chained form inside request reviews.
type ProposalPayload struct {
	ProposalType    string         `json:"proposal_type"`
	ItemName        *string        `json:"item_name,omitempty"`
	ItemDescription *string        `json:"item_description,omitempty"`
	ItemCategory    *string        `json:"item_category,omitempty"`
	ItemMetadata    map[string]any `json:"item_metadata,omitempty"`
	ItemPrice       *float64       `json:"item_price,omitempty"`
	ItemPricingType *string        `json:"item_pricing_type,omitempty"`
	ItemProductURL  *string        `json:"item_product_url,omitempty"`
	ItemVendor      *string        `json:"item_vendor,omitempty"`
	ItemSKU         *string        `json:"item_sku,omitempty"`
	ReplacingItemID *uuid.UUID     `json:"replacing_item_id,omitempty"`
	RequestID       *uuid.UUID     `json:"request_id,omitempty"`
}

func (p *ProposalPayload) toInput() *services.CreateProposalInput {
	return &services.CreateProposalInput{
		ProposalType:    p.ProposalType,
		ItemName:        p.ItemName,
		ItemDescription: p.ItemDescription,
		ItemCategory:    p.ItemCategory,
		ItemMetadata:    p.ItemMetadata,
		ItemPrice:       p.ItemPrice,
		ItemPricingType: p.ItemPricingType,
		ItemProductURL:  p.ItemProductURL,
		ItemVendor:      p.ItemVendor,
		ItemSKU:         p.ItemSKU,
		ReplacingItemID: p.ReplacingItemID,
		RequestID:       p.RequestID,
	}
}

// ReviewProposalRequest for POST /api/proposals/{id}/review
type ReviewProposalRequest struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes,omitempty"`
}

// ProposalListResponse for GET /api/proposals
type ProposalListResponse struct {
	Proposals []*models.Proposal `json:"proposals"`
	Total     int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// ProposalHandler handles proposal HTTP requests.
type ProposalHandler struct {
	proposalService services.ProposalService
	logger          *zap.Logger
}

// NewProposalHandler creates a new proposal handler.
func NewProposalHandler(proposalService services.ProposalService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
		logger:          logger,
	}
}

// RegisterRoutes registers the proposal handler's routes on the given mux.
// Role checks happen in the service so the conflict/forbidden guard order
// stays in one place.
func (h *ProposalHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenant TenantMiddleware) {
	mux.HandleFunc("POST /api/proposals",
		authMiddleware.RequireAuth(tenant(h.Create)))
	mux.HandleFunc("GET /api/proposals",
		authMiddleware.RequireAuth(tenant(h.List)))
	mux.HandleFunc("GET /api/proposals/{id}",
		authMiddleware.RequireAuth(tenant(h.Get)))
	mux.HandleFunc("POST /api/proposals/{id}/review",
		authMiddleware.RequireAuth(tenant(h.Review)))
}

// Create handles POST /api/proposals
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProposalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	proposal, err := h.proposalService.Create(r.Context(), req.toInput())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, proposal); err != nil {
		h.logger.Error("Failed to write created proposal response", zap.Error(err))
	}
}

// List handles GET /api/proposals
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 0)

	proposals, err := h.proposalService.List(r.Context(), status, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if proposals == nil {
		proposals = []*models.Proposal{}
	}

	response := ProposalListResponse{Proposals: proposals, Total: len(proposals)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write proposal list response", zap.Error(err))
	}
}

// Get handles GET /api/proposals/{id}
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	proposal, err := h.proposalService.Get(r.Context(), proposalID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, proposal); err != nil {
		h.logger.Error("Failed to write proposal response", zap.Error(err))
	}
}

// Review handles POST /api/proposals/{id}/review
func (h *ProposalHandler) Review(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req ReviewProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.proposalService.Review(r.Context(), proposalID, req.Approve, req.Notes)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write proposal review response", zap.Error(err))
	}
}
