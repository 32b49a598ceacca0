package request

import "time"

type CreateBookingRequest struct {
	ListingID string                `json:"listing_id" validate:"required,uuid"`
	StartAt   time.Time             `json:"start_at" validate:"required"`
	EndAt     time.Time             `json:"end_at" validate:"required"`
	Options   BookingOptionsRequest `json:"options"`
}

type BookingOptionsRequest struct {
	Insurance    *InsuranceOptionRequest    `json:"insurance,omitempty"`
	Delivery     *DeliveryOptionRequest     `json:"delivery,omitempty"`
	SecondDriver *SecondDriverOptionRequest `json:"second_driver,omitempty"`
}

type InsuranceOptionRequest struct {
	PolicyID string `json:"policy_id" validate:"required,max=64"`
}

type DeliveryOptionRequest struct {
	Address    string  `json:"address" validate:"required,max=300"`
	DistanceKm float64 `json:"distance_km" validate:"gte=0"`
}

type SecondDriverOptionRequest struct {
	DriverName string `json:"driver_name" validate:"required,max=120"`
}

type UpdateBookingStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED CANCELLED"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type RejectBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
