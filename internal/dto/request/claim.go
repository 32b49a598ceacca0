package request

type CreateClaimRequest struct {
	BookingID       string   `json:"booking_id" validate:"required,uuid"`
	Category        string   `json:"category" validate:"required,oneof=SCRATCH DENT BROKEN_PART INTERIOR CLEANING MISSING_ITEM OTHER"`
	AmountRequested float64  `json:"amount_requested" validate:"gt=0"`
	Justification   string   `json:"justification" validate:"required,min=10,max=2000"`
	BeforePhotoURLs []string `json:"before_photo_urls" validate:"omitempty,dive,url"`
	AfterPhotoURLs  []string `json:"after_photo_urls" validate:"omitempty,dive,url"`
	QuoteURL        *string  `json:"quote_url,omitempty" validate:"omitempty,url"`
}

type RenterResponseRequest struct {
	Response string  `json:"response" validate:"required,oneof=accept contest"`
	Comment  *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

type ClaimDecisionRequest struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type AdjustClaimRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}
