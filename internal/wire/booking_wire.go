package wire

import (
	"vehicle-rental/internal/adaptor"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	handler *adaptor.Handler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))

		// Guest
		r.Post("/", handler.Booking.CreateBooking)
		r.Get("/", handler.Booking.GetUserBookings)

		// Guest, host or admin
		r.Get("/{id}", handler.Booking.GetBooking)
		r.Get("/{id}/timeline", handler.Booking.GetTimeline)
		r.Patch("/{id}/status", handler.Booking.UpdateStatus)

		// Host approval for manual-approval listings
		r.Post("/{id}/approve", handler.Booking.Approve)
		r.Post("/{id}/reject", handler.Booking.Reject)

		// Caution deposit
		r.Post("/{id}/deposit", handler.Deposit.CreateHold)
		r.Get("/{id}/deposit", handler.Deposit.GetDeposit)

		// Host payout
		r.Get("/{id}/payout", handler.Payout.GetByBooking)
	})
}
