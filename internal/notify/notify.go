package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeBookingRequested NotificationType = "booking_requested"
	TypeBookingConfirmed NotificationType = "booking_confirmed"
	TypeBookingApproved  NotificationType = "booking_approved"
	TypeBookingRejected  NotificationType = "booking_rejected"
	TypeBookingExpired   NotificationType = "booking_expired"
	TypeBookingCancelled NotificationType = "booking_cancelled"
	TypePaymentFailed    NotificationType = "payment_failed"
	TypeRefundIssued     NotificationType = "refund_issued"
	TypeInspectionReady  NotificationType = "inspection_submitted"
	TypeClaimFiled       NotificationType = "claim_filed"
	TypeClaimDecided     NotificationType = "claim_decided"
	TypeDepositResolved  NotificationType = "deposit_resolved"
	TypePayoutPaid       NotificationType = "payout_paid"
	TypePayoutFailed     NotificationType = "payout_failed"
)

type Notification struct {
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Data      map[string]any   `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Email is resolved to an address by the mailer; Recipient is a user id.
type Email struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Locale    string         `json:"locale"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Dispatcher is fire-and-forget. Implementations log delivery failures and
// never return them.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification)
	SendEmail(ctx context.Context, e Email)
}
