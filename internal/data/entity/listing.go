package entity

import (
	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusInactive ListingStatus = "INACTIVE"
)

type ListingCategory string

const (
	ListingCategoryCarRental ListingCategory = "CAR_RENTAL"
	ListingCategoryOther     ListingCategory = "OTHER"
)

type CancellationPolicy string

const (
	CancellationPolicyFlexible CancellationPolicy = "FLEXIBLE"
	CancellationPolicyModerate CancellationPolicy = "MODERATE"
	CancellationPolicyStrict   CancellationPolicy = "STRICT"
)

// Listing is the read model of the external catalogue needed to price and
// gate a booking.
type Listing struct {
	ID                     uuid.UUID          `db:"id"`
	HostID                 uuid.UUID          `db:"host_id"`
	Status                 ListingStatus      `db:"status"`
	Category               ListingCategory    `db:"category"`
	CountryCode            string             `db:"country_code"`
	VehicleID              *uuid.UUID         `db:"vehicle_id"`
	Currency               string             `db:"currency"`
	PricePerDay            float64            `db:"price_per_day"`
	PricePerHour           float64            `db:"price_per_hour"`
	HourlyEnabled          bool               `db:"hourly_enabled"`
	Discount3Days          float64            `db:"discount_3_days"`
	Discount7Days          float64            `db:"discount_7_days"`
	Discount30Days         float64            `db:"discount_30_days"`
	CancellationPolicy     CancellationPolicy `db:"cancellation_policy"`
	ManualApprovalRequired bool               `db:"manual_approval_required"`
	MinBookingNoticeHours  int                `db:"min_booking_notice_hours"`
	CautionAmount          float64            `db:"caution_amount"`
	Options                ListingOptions     `db:"options"`
}

func (l *Listing) IsCarRental() bool {
	return l.Category == ListingCategoryCarRental
}

// ListingOptions is the option catalogue a host publishes on a listing.
type ListingOptions struct {
	InsurancePolicies []InsurancePolicy  `json:"insurance_policies,omitempty"`
	Delivery          *DeliveryOffer     `json:"delivery,omitempty"`
	SecondDriver      *SecondDriverOffer `json:"second_driver,omitempty"`
}

type InsurancePolicy struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PricePerDay float64 `json:"price_per_day"`
}

type DeliveryOffer struct {
	Available   bool    `json:"available"`
	MaxRadiusKm float64 `json:"max_radius_km"`
	BaseFee     float64 `json:"base_fee"`
	PricePerKm  float64 `json:"price_per_km"`
}

type SecondDriverOffer struct {
	Available   bool    `json:"available"`
	PricePerDay float64 `json:"price_per_day"`
}
