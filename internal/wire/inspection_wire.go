package wire

import (
	"vehicle-rental/internal/adaptor"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireInspection(
	r chi.Router,
	inspectionHandler *adaptor.InspectionHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/inspections", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))

		r.Post("/", inspectionHandler.Create)
		r.Get("/{id}", inspectionHandler.Get)
		r.Patch("/{id}", inspectionHandler.Update)
		r.Post("/{id}/submit", inspectionHandler.Submit)
		r.Post("/{id}/validate", inspectionHandler.Validate)
		r.Post("/{id}/contest", inspectionHandler.Contest)
	})
}
