package entity

import (
	"time"

	"github.com/google/uuid"
)

type InspectionType string

const (
	InspectionTypeDepart InspectionType = "DEPART"
	InspectionTypeRetour InspectionType = "RETOUR"
)

type InspectionMode string

const (
	InspectionModeStandard InspectionMode = "STANDARD"
	InspectionModeKeyBox   InspectionMode = "KEY_BOX"
)

type InspectionRole string

const (
	InspectionRoleHost   InspectionRole = "HOST"
	InspectionRoleRenter InspectionRole = "RENTER"
)

type InspectionStatus string

const (
	InspectionStatusDraft     InspectionStatus = "DRAFT"
	InspectionStatusSubmitted InspectionStatus = "SUBMITTED"
	InspectionStatusValidated InspectionStatus = "VALIDATED"
	InspectionStatusContested InspectionStatus = "CONTESTED"
)

type ItemCondition string

const (
	ConditionOK          ItemCondition = "OK"
	ConditionMinorDamage ItemCondition = "MINOR_DAMAGE"
	ConditionMajorDamage ItemCondition = "MAJOR_DAMAGE"
)

type Cleanliness string

const (
	CleanlinessClean      Cleanliness = "CLEAN"
	CleanlinessAcceptable Cleanliness = "ACCEPTABLE"
	CleanlinessDirty      Cleanliness = "DIRTY"
	CleanlinessVeryDirty  Cleanliness = "VERY_DIRTY"
)

func (c Cleanliness) NeedsNote() bool {
	return c == CleanlinessDirty || c == CleanlinessVeryDirty
}

// CarChecklistCodes is the fixed checklist every car inspection must cover.
var CarChecklistCodes = []string{
	"FRONT_BUMPER",
	"REAR_BUMPER",
	"HOOD",
	"ROOF",
	"TRUNK",
	"FRONT_LEFT_DOOR",
	"FRONT_RIGHT_DOOR",
	"REAR_LEFT_DOOR",
	"REAR_RIGHT_DOOR",
	"WINDSHIELD",
	"REAR_WINDOW",
	"LEFT_MIRROR",
	"RIGHT_MIRROR",
	"WHEELS_TIRES",
	"HEADLIGHTS",
	"TAILLIGHTS",
	"INTERIOR",
}

type InspectionItem struct {
	Code            string        `json:"code"`
	Condition       ItemCondition `json:"condition"`
	ConditionNote   string        `json:"condition_note,omitempty"`
	Cleanliness     Cleanliness   `json:"cleanliness"`
	CleanlinessNote string        `json:"cleanliness_note,omitempty"`
	PhotoURL        string        `json:"photo_url"`
	Latitude        *float64      `json:"latitude,omitempty"`
	Longitude       *float64      `json:"longitude,omitempty"`
}

func (i InspectionItem) GeoTagged() bool {
	return i.Latitude != nil && i.Longitude != nil
}

type InspectionScore struct {
	HostReliability   int `json:"host_reliability"`
	RenterReliability int `json:"renter_reliability"`
	Completeness      int `json:"completeness"`
	PhotoCoverage     int `json:"photo_coverage"`
	GeoTagging        int `json:"geo_tagging"`
	Timeliness        int `json:"timeliness"`
	Overall           int `json:"overall"`
}

type Inspection struct {
	BaseNoDelete
	BookingID        uuid.UUID        `db:"booking_id"`
	Type             InspectionType   `db:"type"`
	Mode             InspectionMode   `db:"mode"`
	CreatorRole      InspectionRole   `db:"creator_role"`
	CreatorID        uuid.UUID        `db:"creator_id"`
	Delegated        bool             `db:"delegated"`
	Items            []InspectionItem `db:"items"`
	Mileage          *int             `db:"mileage"`
	EnergyLevel      *int             `db:"energy_level"`
	DocumentsPresent *bool            `db:"documents_present"`
	Accessories      map[string]bool  `db:"accessories"`
	Status           InspectionStatus `db:"status"`
	ContentHash      *string          `db:"content_hash"`
	SubmittedAt      *time.Time       `db:"submitted_at"`
	ValidatedAt      *time.Time       `db:"validated_at"`
	ValidatedBy      *uuid.UUID       `db:"validated_by"`
	AutoValidated    bool             `db:"auto_validated"`
	ContestReason    *string          `db:"contest_reason"`
	Metadata         map[string]any   `db:"metadata"`
	Score            *InspectionScore `db:"score"`
}

// AutoValidateAfter returns how long a SUBMITTED inspection waits for the
// counter-party before it is validated automatically.
func (i *Inspection) AutoValidateAfter() time.Duration {
	if i.Type == InspectionTypeRetour {
		return AutoValidateRetourAfter
	}
	if i.Delegated {
		return AutoValidateDelegatedAfter
	}
	return AutoValidateStandardAfter
}

const (
	AutoValidateStandardAfter  = 30 * time.Minute
	AutoValidateDelegatedAfter = 12 * time.Hour
	AutoValidateRetourAfter    = 24 * time.Hour
)
