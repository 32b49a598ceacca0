package wire

import (
	"vehicle-rental/internal/adaptor"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(
	r chi.Router,
	handler *adaptor.Handler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.Auth(config.JWT.Secret, log))
		r.Use(middleware.Admin(log))

		// Caution deposit resolution
		r.Post("/bookings/{id}/deposit/capture", handler.Deposit.Capture)
		r.Post("/bookings/{id}/deposit/release", handler.Deposit.Release)

		// Damage claim decisions
		r.Post("/claims/{id}/approve", handler.Claim.Approve)
		r.Post("/claims/{id}/adjust", handler.Claim.Adjust)
		r.Post("/claims/{id}/reject", handler.Claim.Reject)
		r.Post("/claims/{id}/close", handler.Claim.Close)

		// Payout overrides
		r.Post("/payouts/{id}/process", handler.Payout.ForceProcess)
		r.Post("/payouts/{id}/reverse", handler.Payout.Reverse)
	})
}
