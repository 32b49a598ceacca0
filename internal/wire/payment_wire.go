package wire

import (
	"vehicle-rental/internal/adaptor"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES ====================
	r.With(middleware.Auth(config.JWT.Secret, log)).Post("/api/payments/intents", paymentHandler.CreateIntent)

	// ==================== GATEWAY CALLBACKS ====================
	// Authenticated by HMAC signature, not by bearer token
	r.Post("/api/webhooks/payments", paymentHandler.Webhook)
}
