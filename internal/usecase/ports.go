package usecase

import (
	"context"
	"time"

	"vehicle-rental/internal/data/entity"

	"github.com/google/uuid"
)

// Catalog is the read-only view of the external listing catalogue.
type Catalog interface {
	IsMarketOpenForCountry(ctx context.Context, code string) (bool, error)
	// GetListingPricingRules returns nil, nil for an unknown listing.
	GetListingPricingRules(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error)
	IsDateRangeAvailable(ctx context.Context, listingID uuid.UUID, start, end time.Time) (bool, error)
	// GetSiblingListingIDs returns listingID plus every listing sharing vehicleID.
	GetSiblingListingIDs(ctx context.Context, listingID uuid.UUID, vehicleID *uuid.UUID) ([]uuid.UUID, error)
	GetHostPayoutAccount(ctx context.Context, hostID uuid.UUID) (string, error)
}

// SweepResult summarises one scheduler pass.
type SweepResult struct {
	Scanned   int
	Processed int
	Failed    int
}
