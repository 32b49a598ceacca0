package entity

import (
	"github.com/google/uuid"
)

type PaymentType string

const (
	PaymentTypeBooking PaymentType = "BOOKING"
	PaymentTypeExtra   PaymentType = "EXTRA"
	PaymentTypeCaution PaymentType = "CAUTION"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

type Payment struct {
	BaseNoDelete
	BookingID      uuid.UUID      `db:"booking_id"`
	Type           PaymentType    `db:"type"`
	Amount         float64        `db:"amount"`
	Currency       string         `db:"currency"`
	Status         PaymentStatus  `db:"status"`
	ManualCapture  bool           `db:"manual_capture"`
	CapturedAmount float64        `db:"captured_amount"`
	RefundedAmount float64        `db:"refunded_amount"`
	GatewayRef     string         `db:"gateway_ref"`
	ClientSecret   string         `db:"client_secret"`
	IdempotencyKey string         `db:"idempotency_key"`
	FailureReason  *string        `db:"failure_reason"`
	Metadata       map[string]any `db:"metadata"`
}

// AwaitingCapture reports whether the payment is an authorized hold that has
// not been captured yet.
func (p *Payment) AwaitingCapture() bool {
	return p.ManualCapture && p.Status == PaymentStatusSucceeded && p.CapturedAmount == 0
}
