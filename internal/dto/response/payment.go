package response

import (
	"time"

	"vehicle-rental/internal/data/entity"
)

type PaymentIntentResponse struct {
	PaymentID        string               `json:"payment_id"`
	BookingID        string               `json:"booking_id"`
	Type             entity.PaymentType   `json:"type"`
	Amount           float64              `json:"amount"`
	Currency         string               `json:"currency"`
	Status           entity.PaymentStatus `json:"status"`
	ManualCapture    bool                 `json:"manual_capture"`
	ClientSecret     string               `json:"client_secret"`
	IdempotencyKey   string               `json:"idempotency_key"`
	ApprovalDeadline *time.Time           `json:"approval_deadline,omitempty"`
	Reused           bool                 `json:"reused"`
}

type DepositResponse struct {
	ID               string               `json:"id"`
	BookingID        string               `json:"booking_id"`
	HoldAmount       float64              `json:"hold_amount"`
	CapturedAmount   float64              `json:"captured_amount"`
	Currency         string               `json:"currency"`
	Status           entity.DepositStatus `json:"status"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
	ResolutionReason *string              `json:"resolution_reason,omitempty"`
}

type PayoutResponse struct {
	ID               string              `json:"id"`
	BookingID        string              `json:"booking_id"`
	HostID           string              `json:"host_id"`
	TotalAmount      float64             `json:"total_amount"`
	CommissionAmount float64             `json:"commission_amount"`
	HostAmount       float64             `json:"host_amount"`
	Currency         string              `json:"currency"`
	Status           entity.PayoutStatus `json:"status"`
	ScheduledAt      time.Time           `json:"scheduled_at"`
	TransferRef      *string             `json:"transfer_ref,omitempty"`
	FailureReason    *string             `json:"failure_reason,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
}

// Helper converters
func PaymentToIntentResponse(p *entity.Payment, deadline *time.Time, reused bool) PaymentIntentResponse {
	return PaymentIntentResponse{
		PaymentID:        p.ID.String(),
		BookingID:        p.BookingID.String(),
		Type:             p.Type,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		ManualCapture:    p.ManualCapture,
		ClientSecret:     p.ClientSecret,
		IdempotencyKey:   p.IdempotencyKey,
		ApprovalDeadline: deadline,
		Reused:           reused,
	}
}

func DepositToResponse(d *entity.Deposit) DepositResponse {
	return DepositResponse{
		ID:               d.ID.String(),
		BookingID:        d.BookingID.String(),
		HoldAmount:       d.HoldAmount,
		CapturedAmount:   d.CapturedAmount,
		Currency:         d.Currency,
		Status:           d.Status,
		ResolvedAt:       d.ResolvedAt,
		ResolutionReason: d.ResolutionReason,
	}
}

func PayoutToResponse(p *entity.HostPayout) PayoutResponse {
	return PayoutResponse{
		ID:               p.ID.String(),
		BookingID:        p.BookingID.String(),
		HostID:           p.HostID.String(),
		TotalAmount:      p.TotalAmount,
		CommissionAmount: p.CommissionAmount,
		HostAmount:       p.HostAmount,
		Currency:         p.Currency,
		Status:           p.Status,
		ScheduledAt:      p.ScheduledAt,
		TransferRef:      p.TransferRef,
		FailureReason:    p.FailureReason,
		PaidAt:           p.PaidAt,
	}
}
