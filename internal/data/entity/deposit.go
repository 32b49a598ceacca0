package entity

import (
	"time"

	"github.com/google/uuid"
)

type DepositStatus string

const (
	DepositStatusPreauthorized   DepositStatus = "PREAUTHORIZED"
	DepositStatusCapturedFull    DepositStatus = "CAPTURED_FULL"
	DepositStatusCapturedPartial DepositStatus = "CAPTURED_PARTIAL"
	DepositStatusReleased        DepositStatus = "RELEASED"
)

type Deposit struct {
	BaseNoDelete
	BookingID        uuid.UUID     `db:"booking_id"`
	PaymentID        uuid.UUID     `db:"payment_id"`
	HoldAmount       float64       `db:"hold_amount"`
	CapturedAmount   float64       `db:"captured_amount"`
	Currency         string        `db:"currency"`
	Status           DepositStatus `db:"status"`
	ResolvedBy       *uuid.UUID    `db:"resolved_by"`
	ResolvedAt       *time.Time    `db:"resolved_at"`
	ResolutionReason *string       `db:"resolution_reason"`
}

func (d *Deposit) IsResolved() bool {
	return d.Status != DepositStatusPreauthorized
}
