package entity

// SelectedOptions holds the extras a guest picked at booking time. Each kind
// is nil when not selected.
type SelectedOptions struct {
	Insurance    *InsuranceOption    `json:"insurance,omitempty"`
	Delivery     *DeliveryOption     `json:"delivery,omitempty"`
	SecondDriver *SecondDriverOption `json:"second_driver,omitempty"`
}

func (o SelectedOptions) IsEmpty() bool {
	return o.Insurance == nil && o.Delivery == nil && o.SecondDriver == nil
}

type InsuranceOption struct {
	PolicyID string  `json:"policy_id"`
	Price    float64 `json:"price"`
}

type DeliveryOption struct {
	Address    string  `json:"address"`
	DistanceKm float64 `json:"distance_km"`
	Price      float64 `json:"price"`
}

type SecondDriverOption struct {
	DriverName string  `json:"driver_name"`
	Price      float64 `json:"price"`
}
