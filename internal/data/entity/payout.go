package entity

import (
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusScheduled  PayoutStatus = "SCHEDULED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusPaid       PayoutStatus = "PAID"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
	PayoutStatusReversed   PayoutStatus = "REVERSED"
)

type HostPayout struct {
	BaseNoDelete
	BookingID        uuid.UUID    `db:"booking_id"`
	HostID           uuid.UUID    `db:"host_id"`
	TotalAmount      float64      `db:"total_amount"`
	CommissionAmount float64      `db:"commission_amount"`
	HostAmount       float64      `db:"host_amount"`
	Currency         string       `db:"currency"`
	Status           PayoutStatus `db:"status"`
	ScheduledAt      time.Time    `db:"scheduled_at"`
	TransferRef      *string      `db:"transfer_ref"`
	FailureReason    *string      `db:"failure_reason"`
	ProcessedAt      *time.Time   `db:"processed_at"`
	PaidAt           *time.Time   `db:"paid_at"`
}
