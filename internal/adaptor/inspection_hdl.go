package adaptor

import (
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InspectionHandler struct {
	service usecase.InspectionService
	log     *zap.Logger
}

func NewInspectionHandler(service usecase.InspectionService, log *zap.Logger) *InspectionHandler {
	return &InspectionHandler{
		service: service,
		log:     log.With(zap.String("handler", "inspection")),
	}
}

// Create handles POST /api/inspections
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CreateInspectionRequest
	if !decode(w, r, &req) {
		return
	}

	inspection, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create inspection")
		return
	}

	utils.ResponseCreated(w, "success", inspection)
}

// Get handles GET /api/inspections/{id}
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := actor(w, r)
	if !ok {
		return
	}

	inspection, err := h.service.Get(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "get inspection")
		return
	}

	utils.ResponseSuccess(w, "success", inspection)
}

// Update handles PATCH /api/inspections/{id}
func (h *InspectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.UpdateInspectionRequest
	if !decode(w, r, &req) {
		return
	}

	inspection, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "update inspection")
		return
	}

	utils.ResponseSuccess(w, "success", inspection)
}

// Submit handles POST /api/inspections/{id}/submit
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	inspection, err := h.service.Submit(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "submit inspection")
		return
	}

	utils.ResponseSuccess(w, "success", inspection)
}

// Validate handles POST /api/inspections/{id}/validate
func (h *InspectionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	inspection, err := h.service.Validate(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.log, w, err, "validate inspection")
		return
	}

	utils.ResponseSuccess(w, "success", inspection)
}

// Contest handles POST /api/inspections/{id}/contest
func (h *InspectionHandler) Contest(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.ContestInspectionRequest
	if !decode(w, r, &req) {
		return
	}

	inspection, err := h.service.Contest(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "contest inspection")
		return
	}

	utils.ResponseSuccess(w, "success", inspection)
}
