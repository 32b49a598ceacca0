package request

type ReversePayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
