package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "PENDING"
	BookingStatusPendingApproval BookingStatus = "PENDING_APPROVAL"
	BookingStatusConfirmed       BookingStatus = "CONFIRMED"
	BookingStatusInProgress      BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted       BookingStatus = "COMPLETED"
	BookingStatusCancelled       BookingStatus = "CANCELLED"
)

// bookingTransitions is the allowed edge set of the booking status DAG.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:         {BookingStatusPendingApproval, BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusPendingApproval: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:       {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress:      {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:       {},
	BookingStatusCancelled:       {},
}

// CanTransitionTo reports whether the DAG has an edge from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type Booking struct {
	BaseNoDelete
	GuestID            uuid.UUID          `db:"guest_id"`
	HostID             uuid.UUID          `db:"host_id"`
	ListingID          uuid.UUID          `db:"listing_id"`
	VehicleID          *uuid.UUID         `db:"vehicle_id"`
	StartAt            time.Time          `db:"start_at"`
	EndAt              time.Time          `db:"end_at"`
	TotalAmount        float64            `db:"total_amount"`
	CautionAmount      float64            `db:"caution_amount"`
	Currency           string             `db:"currency"`
	Status             BookingStatus      `db:"status"`
	CarRental          bool               `db:"car_rental"`
	ManualApproval     bool               `db:"manual_approval"`
	CancellationPolicy CancellationPolicy `db:"cancellation_policy"`
	ApprovalDeadline   *time.Time         `db:"approval_deadline"`
	ApprovalExpired    bool               `db:"approval_expired"`
	Options            SelectedOptions    `db:"options"`
	Price              PriceBreakdown     `db:"price"`
	CancelledAt        *time.Time         `db:"cancelled_at"`
	CancelledBy        *uuid.UUID         `db:"cancelled_by"`
	CancelReason       *string            `db:"cancel_reason"`
}

// IsParty reports whether userID is the guest or the host of the booking.
func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.GuestID == userID || b.HostID == userID
}

// ResourceKey identifies the bookable resource: the shared vehicle when the
// listing has one, else the listing itself.
func (b *Booking) ResourceKey() string {
	if b.VehicleID != nil {
		return "vehicle:" + b.VehicleID.String()
	}
	return "listing:" + b.ListingID.String()
}

type PriceBreakdown struct {
	Days            int     `json:"days"`
	Hours           int     `json:"hours"`
	Hourly          bool    `json:"hourly"`
	Subtotal        float64 `json:"subtotal"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	BasePrice       float64 `json:"base_price"`
	OptionsPrice    float64 `json:"options_price"`
	Total           float64 `json:"total"`
}
