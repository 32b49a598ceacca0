package adaptor

import (
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type DepositHandler struct {
	service usecase.DepositService
	log     *zap.Logger
}

func NewDepositHandler(service usecase.DepositService, log *zap.Logger) *DepositHandler {
	return &DepositHandler{
		service: service,
		log:     log.With(zap.String("handler", "deposit")),
	}
}

// CreateHold handles POST /api/bookings/{id}/deposit
func (h *DepositHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CreateCautionHoldRequest
	if !decode(w, r, &req) {
		return
	}

	intent, err := h.service.CreateCautionHold(r.Context(), userID, chi.URLParam(r, "id"), req.Source)
	if err != nil {
		handleServiceError(h.log, w, err, "create caution hold")
		return
	}

	utils.ResponseCreated(w, "success", intent)
}

// GetDeposit handles GET /api/bookings/{id}/deposit
func (h *DepositHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	deposit, err := h.service.GetByBooking(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get deposit")
		return
	}

	utils.ResponseSuccess(w, "success", deposit)
}

// ==================== ADMIN METHODS ====================

// Capture handles POST /api/admin/bookings/{id}/deposit/capture
func (h *DepositHandler) Capture(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CaptureCautionRequest
	if !decode(w, r, &req) {
		return
	}

	deposit, err := h.service.CaptureForAdmin(r.Context(), adminID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "capture caution")
		return
	}

	utils.ResponseSuccess(w, "success", deposit)
}

// Release handles POST /api/admin/bookings/{id}/deposit/release
func (h *DepositHandler) Release(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.ReleaseCautionRequest
	if !decode(w, r, &req) {
		return
	}

	deposit, err := h.service.ReleaseForAdmin(r.Context(), adminID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "release caution")
		return
	}

	utils.ResponseSuccess(w, "success", deposit)
}
