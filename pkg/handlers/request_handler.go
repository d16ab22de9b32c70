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

// CreateRequestRequest for POST /api/requests
type CreateRequestRequest struct {
	SearchQuery   string                        `json:"search_query"`
	SearchResults []models.SearchResultSnapshot `json:"search_results,omitempty"`
	Justification *string                       `json:"justification,omitempty"`
}

// ReviewRequestRequest for POST /api/requests/{id}/review
type ReviewRequestRequest struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes,omitempty"`

	// Proposal optionally chains the approval directly into a proposal.
	Proposal *ProposalPayload `json:"proposal,omitempty"`
}

// RequestListResponse for GET /api/requests
type RequestListResponse struct {
	Requests []*models.Request `json:"requests"`
	Total    int               `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// RequestHandler handles new-item request HTTP requests.
type RequestHandler struct {
	requestService services.RequestService
	logger         *zap.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requestService services.RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		logger:         logger,
	}
}

// RegisterRoutes registers the request handler's routes on the given mux.
func (h *RequestHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenant TenantMiddleware) {
	mux.HandleFunc("POST /api/requests",
		authMiddleware.RequireAuth(tenant(h.Create)))
	mux.HandleFunc("GET /api/requests",
		authMiddleware.RequireAuth(tenant(h.List)))
	mux.HandleFunc("GET /api/requests/{id}",
		authMiddleware.RequireAuth(tenant(h.Get)))
	mux.HandleFunc("POST /api/requests/{id}/review",
		authMiddleware.RequireAuth(tenant(h.Review)))
}

// Create handles POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	request, err := h.requestService.Create(r.Context(), &services.CreateRequestInput{
		SearchQuery:   req.SearchQuery,
		SearchResults: req.SearchResults,
		Justification: req.Justification,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, request); err != nil {
		h.logger.Error("Failed to write created request response", zap.Error(err))
	}
}

// List handles GET /api/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", 0)

	requests, err := h.requestService.List(r.Context(), status, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if requests == nil {
		requests = []*models.Request{}
	}

	response := RequestListResponse{Requests: requests, Total: len(requests)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write request list response", zap.Error(err))
	}
}

// Get handles GET /api/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	request, err := h.requestService.Get(r.Context(), requestID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, request); err != nil {
		h.logger.Error("Failed to write request response", zap.Error(err))
	}
}

// Review handles POST /api/requests/{id}/review
func (h *RequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parsePathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req ReviewRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var proposal *services.CreateProposalInput
	if req.Proposal != nil {
		proposal = req.Proposal.toInput()
	}

	result, err := h.requestService.Review(r.Context(), requestID, req.Approve, req.Notes, proposal)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write review response", zap.Error(err))
	}
}
