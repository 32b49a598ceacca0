package wire

import (
	"vehicle-rental/internal/adaptor"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireClaim(
	r chi.Router,
	claimHandler *adaptor.ClaimHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/claims", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))

		r.Post("/", claimHandler.Create)
		r.Get("/{id}", claimHandler.Get)
		r.Post("/{id}/submit", claimHandler.Submit)
		r.Post("/{id}/respond", claimHandler.Respond)
	})
}
