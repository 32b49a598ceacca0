package adaptor

import (
	"io"
	"net/http"

	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"go.uber.org/zap"
)

const (
	signatureHeader   = "X-Webhook-Signature"
	idempotencyHeader = "Idempotency-Key"
	maxWebhookBody    = 1 << 20
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreateIntent handles POST /api/payments/intents
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := actor(w, r)
	if !ok {
		return
	}

	var req request.CreatePaymentIntentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == nil {
		if key := r.Header.Get(idempotencyHeader); key != "" {
			req.IdempotencyKey = &key
		}
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create payment intent")
		return
	}

	utils.ResponseCreated(w, "success", intent)
}

// Webhook handles POST /api/webhooks/payments. The raw body is needed to
// check the signature, so it is read before any decoding.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		handleServiceError(h.log, w, err, "handle payment webhook")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
