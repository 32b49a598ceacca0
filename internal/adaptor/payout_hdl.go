package adaptor

import (
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	service usecase.PayoutService
	log     *zap.Logger
}

func NewPayoutHandler(service usecase.PayoutService, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{
		service: service,
		log:     log.With(zap.String("handler", "payout")),
	}
}

// GetByBooking handles GET /api/bookings/{id}/payout
func (h *PayoutHandler) GetByBooking(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	payout, err := h.service.GetByBooking(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get payout")
		return
	}

	utils.ResponseSuccess(w, "success", payout)
}

// ==================== ADMIN METHODS ====================

// ForceProcess handles POST /api/admin/payouts/{id}/process
func (h *PayoutHandler) ForceProcess(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	payout, err := h.service.ForceProcess(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "force process payout")
		return
	}

	utils.ResponseSuccess(w, "success", payout)
}

// Reverse handles POST /api/admin/payouts/{id}/reverse
func (h *PayoutHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.ReversePayoutRequest
	if !decode(w, r, &req) {
		return
	}

	payout, err := h.service.Reverse(r.Context(), adminID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "reverse payout")
		return
	}

	utils.ResponseSuccess(w, "success", payout)
}
