package request

type CreatePaymentIntentRequest struct {
	BookingID      string  `json:"booking_id" validate:"required,uuid"`
	Type           string  `json:"type" validate:"required,oneof=BOOKING EXTRA CAUTION"`
	Amount         float64 `json:"amount" validate:"gte=0"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	// Source is the tokenized card produced by the gateway's client library.
	Source string `json:"source" validate:"required,max=128"`
}

type CaptureCautionRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

type ReleaseCautionRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CreateCautionHoldRequest struct {
	Source string `json:"source" validate:"required,max=128"`
}
