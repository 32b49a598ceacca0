package entity

import (
	"time"

	"github.com/google/uuid"
)

type TimelineEventType string

const (
	EventBookingCreated          TimelineEventType = "booking.created"
	EventBookingStatusChanged    TimelineEventType = "booking.status_changed"
	EventBookingApproved         TimelineEventType = "booking.approved"
	EventBookingRejected         TimelineEventType = "booking.rejected"
	EventBookingAutoExpired      TimelineEventType = "booking.auto_expired"
	EventBookingRefundIssued     TimelineEventType = "booking.refund_issued"
	EventBookingRefundFailed     TimelineEventType = "booking.refund_failed"
	EventPaymentIntentCreated    TimelineEventType = "payment.intent_created"
	EventPaymentSucceeded        TimelineEventType = "payment.succeeded"
	EventPaymentFailed           TimelineEventType = "payment.failed"
	EventDepositHeld             TimelineEventType = "deposit.held"
	EventDepositCaptured         TimelineEventType = "deposit.captured"
	EventDepositReleased         TimelineEventType = "deposit.released"
	EventDepositAutoReleased     TimelineEventType = "deposit.auto_released"
	EventInspectionCreated       TimelineEventType = "inspection.created"
	EventInspectionSubmitted     TimelineEventType = "inspection.submitted"
	EventInspectionValidated     TimelineEventType = "inspection.validated"
	EventInspectionAutoValidated TimelineEventType = "inspection.auto_validated"
	EventInspectionContested     TimelineEventType = "inspection.contested"
	EventClaimCreated            TimelineEventType = "claim.created"
	EventClaimSubmitted          TimelineEventType = "claim.submitted"
	EventClaimRenterResponded    TimelineEventType = "claim.renter_responded"
	EventClaimAutoAccepted       TimelineEventType = "claim.auto_accepted"
	EventClaimDecided            TimelineEventType = "claim.decided"
	EventClaimAutoRejected       TimelineEventType = "claim.auto_rejected"
	EventClaimClosed             TimelineEventType = "claim.closed"
	EventPayoutScheduled         TimelineEventType = "payout.scheduled"
	EventPayoutPaid              TimelineEventType = "payout.paid"
	EventPayoutFailed            TimelineEventType = "payout.failed"
	EventPayoutCancelled         TimelineEventType = "payout.cancelled"
	EventPayoutReversed          TimelineEventType = "payout.reversed"
)

// TimelineEvent is an append-only audit record. Seq orders events for the
// relay; rows are never updated or deleted.
type TimelineEvent struct {
	Seq       int64             `db:"seq"`
	ID        uuid.UUID         `db:"id"`
	BookingID uuid.UUID         `db:"booking_id"`
	EventType TimelineEventType `db:"event_type"`
	ActorID   *uuid.UUID        `db:"actor_id"`
	Automatic bool              `db:"automatic"`
	Payload   map[string]any    `db:"payload"`
	CreatedAt time.Time         `db:"created_at"`
}
