package adaptor

import (
	"context"
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/dto/response"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClaimHandler struct {
	service usecase.ClaimService
	log     *zap.Logger
}

func NewClaimHandler(service usecase.ClaimService, log *zap.Logger) *ClaimHandler {
	return &ClaimHandler{
		service: service,
		log:     log.With(zap.String("handler", "claim")),
	}
}

// Create handles POST /api/claims (host)
func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CreateClaimRequest
	if !decode(w, r, &req) {
		return
	}

	claim, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create claim")
		return
	}

	utils.ResponseCreated(w, "success", claim)
}

// Get handles GET /api/claims/{id}
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	claim, err := h.service.Get(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get claim")
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}

// Submit handles POST /api/claims/{id}/submit (host)
func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	claim, err := h.service.Submit(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "submit claim")
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}

// Respond handles POST /api/claims/{id}/respond (renter)
func (h *ClaimHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.RenterResponseRequest
	if !decode(w, r, &req) {
		return
	}

	claim, err := h.service.RenterRespond(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "respond to claim")
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}

// ==================== ADMIN METHODS ====================

// Approve handles POST /api/admin/claims/{id}/approve
func (h *ClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve claim", h.service.Approve)
}

// Reject handles POST /api/admin/claims/{id}/reject
func (h *ClaimHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject claim", h.service.Reject)
}

// Adjust handles POST /api/admin/claims/{id}/adjust
func (h *ClaimHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.AdjustClaimRequest
	if !decode(w, r, &req) {
		return
	}

	claim, err := h.service.Adjust(r.Context(), adminID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "adjust claim")
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}

// Close handles POST /api/admin/claims/{id}/close
func (h *ClaimHandler) Close(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	claim, err := h.service.Close(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "close claim")
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}

type decisionFunc func(ctx context.Context, adminID uuid.UUID, claimID string, req *request.ClaimDecisionRequest) (*response.ClaimResponse, error)

func (h *ClaimHandler) decide(w http.ResponseWriter, r *http.Request, operation string, fn decisionFunc) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.ClaimDecisionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	claim, err := fn(r.Context(), adminID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", claim)
}
