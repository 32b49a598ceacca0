package request

type CreateInspectionRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Type      string `json:"type" validate:"required,oneof=DEPART RETOUR"`
	Mode      string `json:"mode" validate:"required,oneof=STANDARD KEY_BOX"`
}

type UpdateInspectionRequest struct {
	Items            []InspectionItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	Mileage          *int                    `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	EnergyLevel      *int                    `json:"energy_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	DocumentsPresent *bool                   `json:"documents_present,omitempty"`
	Accessories      map[string]bool         `json:"accessories,omitempty"`
}

type InspectionItemRequest struct {
	Code            string   `json:"code" validate:"required,max=32"`
	Condition       string   `json:"condition" validate:"required,oneof=OK MINOR_DAMAGE MAJOR_DAMAGE"`
	ConditionNote   string   `json:"condition_note,omitempty" validate:"max=1000"`
	Cleanliness     string   `json:"cleanliness" validate:"required,oneof=CLEAN ACCEPTABLE DIRTY VERY_DIRTY"`
	CleanlinessNote string   `json:"cleanliness_note,omitempty" validate:"max=1000"`
	PhotoURL        string   `json:"photo_url,omitempty" validate:"omitempty,url"`
	Latitude        *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

type ContestInspectionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}
