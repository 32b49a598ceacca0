package response

import (
	"time"

	"vehicle-rental/internal/data/entity"
)

type BookingResponse struct {
	ID                 string                    `json:"id"`
	GuestID            string                    `json:"guest_id"`
	HostID             string                    `json:"host_id"`
	ListingID          string                    `json:"listing_id"`
	StartAt            time.Time                 `json:"start_at"`
	EndAt              time.Time                 `json:"end_at"`
	TotalAmount        float64                   `json:"total_amount"`
	CautionAmount      float64                   `json:"caution_amount"`
	Currency           string                    `json:"currency"`
	Status             entity.BookingStatus      `json:"status"`
	ManualApproval     bool                      `json:"manual_approval"`
	CancellationPolicy entity.CancellationPolicy `json:"cancellation_policy"`
	ApprovalDeadline   *time.Time                `json:"approval_deadline,omitempty"`
	Options            entity.SelectedOptions    `json:"options"`
	Price              entity.PriceBreakdown     `json:"price"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	CancelReason       *string                   `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// CancellationResponse reports what happened to the money on cancellation.
type CancellationResponse struct {
	Booking       BookingResponse `json:"booking"`
	RefundPercent float64         `json:"refund_percent"`
	RefundAmount  float64         `json:"refund_amount"`
	RefundStatus  string          `json:"refund_status,omitempty"`
}

type TimelineEventResponse struct {
	ID        string                   `json:"id"`
	EventType entity.TimelineEventType `json:"event_type"`
	ActorID   *string                  `json:"actor_id,omitempty"`
	Automatic bool                     `json:"automatic"`
	Payload   map[string]any           `json:"payload,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID.String(),
		GuestID:            b.GuestID.String(),
		HostID:             b.HostID.String(),
		ListingID:          b.ListingID.String(),
		StartAt:            b.StartAt,
		EndAt:              b.EndAt,
		TotalAmount:        b.TotalAmount,
		CautionAmount:      b.CautionAmount,
		Currency:           b.Currency,
		Status:             b.Status,
		ManualApproval:     b.ManualApproval,
		CancellationPolicy: b.CancellationPolicy,
		ApprovalDeadline:   b.ApprovalDeadline,
		Options:            b.Options,
		Price:              b.Price,
		CancelledAt:        b.CancelledAt,
		CancelReason:       b.CancelReason,
		CreatedAt:          b.CreatedAt,
	}
}

func TimelineEventToResponse(e *entity.TimelineEvent) TimelineEventResponse {
	resp := TimelineEventResponse{
		ID:        e.ID.String(),
		EventType: e.EventType,
		Automatic: e.Automatic,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
	if e.ActorID != nil {
		id := e.ActorID.String()
		resp.ActorID = &id
	}
	return resp
}
