package adaptor

import (
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}

	booking, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "success", booking)
}

// GetUserBookings handles GET /api/bookings
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), utils.DefaultPerPage),
	}

	bookings, err := h.service.ListForUser(r.Context(), userID, req)
	if err != nil {
		handleServiceError(h.log, w, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// GetTimeline handles GET /api/bookings/{id}/timeline
func (h *BookingHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	events, err := h.service.GetTimeline(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get booking timeline")
		return
	}

	utils.ResponseSuccess(w, "success", events)
}

// UpdateStatus handles PATCH /api/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.UpdateBookingStatusRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "update booking status")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}

// Approve handles POST /api/bookings/{id}/approve (host)
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	booking, err := h.service.Approve(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "approve booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// Reject handles POST /api/bookings/{id}/reject (host)
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	// Body is optional; an empty body means no reason.
	var req request.RejectBookingRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	booking, err := h.service.Reject(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "reject booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}
