package response

import (
	"time"

	"vehicle-rental/internal/data/entity"
)

type InspectionResponse struct {
	ID               string                  `json:"id"`
	BookingID        string                  `json:"booking_id"`
	Type             entity.InspectionType   `json:"type"`
	Mode             entity.InspectionMode   `json:"mode"`
	CreatorRole      entity.InspectionRole   `json:"creator_role"`
	CreatorID        string                  `json:"creator_id"`
	Delegated        bool                    `json:"delegated"`
	Items            []entity.InspectionItem `json:"items"`
	Mileage          *int                    `json:"mileage,omitempty"`
	EnergyLevel      *int                    `json:"energy_level,omitempty"`
	DocumentsPresent *bool                   `json:"documents_present,omitempty"`
	Accessories      map[string]bool         `json:"accessories,omitempty"`
	Status           entity.InspectionStatus `json:"status"`
	ContentHash      *string                 `json:"content_hash,omitempty"`
	SubmittedAt      *time.Time              `json:"submitted_at,omitempty"`
	ValidatedAt      *time.Time              `json:"validated_at,omitempty"`
	AutoValidated    bool                    `json:"auto_validated"`
	ContestReason    *string                 `json:"contest_reason,omitempty"`
	Metadata         map[string]any          `json:"metadata,omitempty"`
	Score            *entity.InspectionScore `json:"score,omitempty"`
}

type ClaimResponse struct {
	ID                string                 `json:"id"`
	BookingID         string                 `json:"booking_id"`
	HostID            string                 `json:"host_id"`
	RenterID          string                 `json:"renter_id"`
	Category          entity.ClaimCategory   `json:"category"`
	AmountRequested   float64                `json:"amount_requested"`
	Currency          string                 `json:"currency"`
	Justification     string                 `json:"justification"`
	BeforePhotoURLs   []string               `json:"before_photo_urls"`
	AfterPhotoURLs    []string               `json:"after_photo_urls"`
	QuoteURL          *string                `json:"quote_url,omitempty"`
	Status            entity.ClaimStatus     `json:"status"`
	ConfidenceScore   *int                   `json:"confidence_score,omitempty"`
	RenterResponse    *entity.RenterResponse `json:"renter_response,omitempty"`
	RenterComment     *string                `json:"renter_comment,omitempty"`
	AutoAccepted      bool                   `json:"auto_accepted"`
	SubmittedAt       *time.Time             `json:"submitted_at,omitempty"`
	RenterRespondedAt *time.Time             `json:"renter_responded_at,omitempty"`
	DecidedAmount     *float64               `json:"decided_amount,omitempty"`
	DecidedAt         *time.Time             `json:"decided_at,omitempty"`
	AdminNote         *string                `json:"admin_note,omitempty"`
	AutoDecided       bool                   `json:"auto_decided"`
	ClosedAt          *time.Time             `json:"closed_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// Helper converters
func InspectionToResponse(i *entity.Inspection) InspectionResponse {
	return InspectionResponse{
		ID:               i.ID.String(),
		BookingID:        i.BookingID.String(),
		Type:             i.Type,
		Mode:             i.Mode,
		CreatorRole:      i.CreatorRole,
		CreatorID:        i.CreatorID.String(),
		Delegated:        i.Delegated,
		Items:            i.Items,
		Mileage:          i.Mileage,
		EnergyLevel:      i.EnergyLevel,
		DocumentsPresent: i.DocumentsPresent,
		Accessories:      i.Accessories,
		Status:           i.Status,
		ContentHash:      i.ContentHash,
		SubmittedAt:      i.SubmittedAt,
		ValidatedAt:      i.ValidatedAt,
		AutoValidated:    i.AutoValidated,
		ContestReason:    i.ContestReason,
		Metadata:         i.Metadata,
		Score:            i.Score,
	}
}

func ClaimToResponse(c *entity.DamageClaim) ClaimResponse {
	return ClaimResponse{
		ID:                c.ID.String(),
		BookingID:         c.BookingID.String(),
		HostID:            c.HostID.String(),
		RenterID:          c.RenterID.String(),
		Category:          c.Category,
		AmountRequested:   c.AmountRequested,
		Currency:          c.Currency,
		Justification:     c.Justification,
		BeforePhotoURLs:   c.BeforePhotoURLs,
		AfterPhotoURLs:    c.AfterPhotoURLs,
		QuoteURL:          c.QuoteURL,
		Status:            c.Status,
		ConfidenceScore:   c.ConfidenceScore,
		RenterResponse:    c.RenterResponse,
		RenterComment:     c.RenterComment,
		AutoAccepted:      c.AutoAccepted,
		SubmittedAt:       c.SubmittedAt,
		RenterRespondedAt: c.RenterRespondedAt,
		DecidedAmount:     c.DecidedAmount,
		DecidedAt:         c.DecidedAt,
		AdminNote:         c.AdminNote,
		AutoDecided:       c.AutoDecided,
		ClosedAt:          c.ClosedAt,
		CreatedAt:         c.CreatedAt,
	}
}
