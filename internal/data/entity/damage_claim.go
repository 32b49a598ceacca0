package entity

import (
	"time"

	"github.com/google/uuid"
)

type ClaimStatus string

const (
	ClaimStatusDraft                  ClaimStatus = "DRAFT"
	ClaimStatusAwaitingRenterResponse ClaimStatus = "AWAITING_RENTER_RESPONSE"
	ClaimStatusAwaitingAdminReview    ClaimStatus = "AWAITING_ADMIN_REVIEW"
	ClaimStatusAdminApproved          ClaimStatus = "ADMIN_APPROVED"
	ClaimStatusAdminAdjusted          ClaimStatus = "ADMIN_ADJUSTED"
	ClaimStatusAdminRejected          ClaimStatus = "ADMIN_REJECTED"
	ClaimStatusClosed                 ClaimStatus = "CLOSED"
)

// IsOpen reports whether the claim still holds the deposit hostage, i.e. no
// admin decision has been made.
func (s ClaimStatus) IsOpen() bool {
	switch s {
	case ClaimStatusDraft, ClaimStatusAwaitingRenterResponse, ClaimStatusAwaitingAdminReview:
		return true
	}
	return false
}

func (s ClaimStatus) IsDecided() bool {
	switch s {
	case ClaimStatusAdminApproved, ClaimStatusAdminAdjusted, ClaimStatusAdminRejected:
		return true
	}
	return false
}

type ClaimCategory string

const (
	ClaimCategoryScratch     ClaimCategory = "SCRATCH"
	ClaimCategoryDent        ClaimCategory = "DENT"
	ClaimCategoryBrokenPart  ClaimCategory = "BROKEN_PART"
	ClaimCategoryInterior    ClaimCategory = "INTERIOR"
	ClaimCategoryCleaning    ClaimCategory = "CLEANING"
	ClaimCategoryMissingItem ClaimCategory = "MISSING_ITEM"
	ClaimCategoryOther       ClaimCategory = "OTHER"
)

type RenterResponse string

const (
	RenterResponseAccept  RenterResponse = "accept"
	RenterResponseContest RenterResponse = "contest"
)

type DamageClaim struct {
	BaseNoDelete
	BookingID         uuid.UUID       `db:"booking_id"`
	HostID            uuid.UUID       `db:"host_id"`
	RenterID          uuid.UUID       `db:"renter_id"`
	Category          ClaimCategory   `db:"category"`
	AmountRequested   float64         `db:"amount_requested"`
	Currency          string          `db:"currency"`
	Justification     string          `db:"justification"`
	BeforePhotoURLs   []string        `db:"before_photo_urls"`
	AfterPhotoURLs    []string        `db:"after_photo_urls"`
	QuoteURL          *string         `db:"quote_url"`
	Status            ClaimStatus     `db:"status"`
	ConfidenceScore   *int            `db:"confidence_score"`
	RenterResponse    *RenterResponse `db:"renter_response"`
	RenterComment     *string         `db:"renter_comment"`
	AutoAccepted      bool            `db:"auto_accepted"`
	SubmittedAt       *time.Time      `db:"submitted_at"`
	RenterRespondedAt *time.Time      `db:"renter_responded_at"`
	DecidedAmount     *float64        `db:"decided_amount"`
	DecidedBy         *uuid.UUID      `db:"decided_by"`
	DecidedAt         *time.Time      `db:"decided_at"`
	AdminNote         *string         `db:"admin_note"`
	AutoDecided       bool            `db:"auto_decided"`
	ClosedAt          *time.Time      `db:"closed_at"`
}
