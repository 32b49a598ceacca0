package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jinzhu/now"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const marketCacheTTL = 5 * time.Minute

// Catalog reads the listing read model kept in sync by the catalogue service.
type Catalog struct {
	db    database.Querier
	cache *redis.Client
	log   *zap.Logger
}

// NewCatalog builds a catalog reader. cache may be nil.
func NewCatalog(db database.Querier, cache *redis.Client, log *zap.Logger) *Catalog {
	return &Catalog{
		db:    db,
		cache: cache,
		log:   log.With(zap.String("component", "catalog")),
	}
}

func marketKey(code string) string {
	return "catalog:market_open:" + code
}

// IsMarketOpenForCountry reports whether the market is visible and accepts
// bookings. Answers are cached in Redis for a few minutes.
func (c *Catalog) IsMarketOpenForCountry(ctx context.Context, code string) (bool, error) {
	if c.cache != nil {
		val, err := c.cache.Get(ctx, marketKey(code)).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case !errors.Is(err, redis.Nil):
			c.log.Warn("Market cache read failed", zap.Error(err), zap.String("country_code", code))
		}
	}

	var open bool
	err := c.db.QueryRow(ctx,
		`SELECT visible AND bookings_allowed FROM markets WHERE country_code = $1`, code,
	).Scan(&open)
	if errors.Is(err, pgx.ErrNoRows) {
		open = false
	} else if err != nil {
		c.log.Error("Failed to read market", zap.Error(err), zap.String("country_code", code))
		return false, fmt.Errorf("read market %s: %w", code, err)
	}

	if c.cache != nil {
		val := "0"
		if open {
			val = "1"
		}
		if err := c.cache.Set(ctx, marketKey(code), val, marketCacheTTL).Err(); err != nil {
			c.log.Warn("Market cache write failed", zap.Error(err), zap.String("country_code", code))
		}
	}

	return open, nil
}

func (c *Catalog) GetListingPricingRules(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	query := `
		SELECT id, host_id, status, category, country_code, vehicle_id, currency,
		       price_per_day, price_per_hour, hourly_enabled,
		       discount_3_days, discount_7_days, discount_30_days,
		       cancellation_policy, manual_approval_required, min_booking_notice_hours,
		       caution_amount, options
		FROM listings
		WHERE id = $1
	`

	var l entity.Listing
	err := c.db.QueryRow(ctx, query, listingID).Scan(
		&l.ID,
		&l.HostID,
		&l.Status,
		&l.Category,
		&l.CountryCode,
		&l.VehicleID,
		&l.Currency,
		&l.PricePerDay,
		&l.PricePerHour,
		&l.HourlyEnabled,
		&l.Discount3Days,
		&l.Discount7Days,
		&l.Discount30Days,
		&l.CancellationPolicy,
		&l.ManualApprovalRequired,
		&l.MinBookingNoticeHours,
		&l.CautionAmount,
		&l.Options,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		c.log.Error("Failed to read listing", zap.Error(err), zap.String("listing_id", listingID.String()))
		return nil, fmt.Errorf("read listing %s: %w", listingID.String(), err)
	}

	return &l, nil
}

// IsDateRangeAvailable checks every calendar day touched by [start, end)
// against the listing's blocked days.
func (c *Catalog) IsDateRangeAvailable(ctx context.Context, listingID uuid.UUID, start, end time.Time) (bool, error) {
	days := DaysInRange(start, end)
	if len(days) == 0 {
		return false, nil
	}

	var blocked int64
	err := c.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM listing_blocked_days WHERE listing_id = $1 AND day = ANY($2::date[])`,
		listingID, days,
	).Scan(&blocked)
	if err != nil {
		c.log.Error("Failed to check availability", zap.Error(err), zap.String("listing_id", listingID.String()))
		return false, fmt.Errorf("check availability of listing %s: %w", listingID.String(), err)
	}

	return blocked == 0, nil
}

func (c *Catalog) GetSiblingListingIDs(ctx context.Context, listingID uuid.UUID, vehicleID *uuid.UUID) ([]uuid.UUID, error) {
	if vehicleID == nil {
		return []uuid.UUID{listingID}, nil
	}

	rows, err := c.db.Query(ctx, `SELECT id FROM listings WHERE vehicle_id = $1`, *vehicleID)
	if err != nil {
		c.log.Error("Failed to list sibling listings", zap.Error(err), zap.String("vehicle_id", vehicleID.String()))
		return nil, fmt.Errorf("list listings of vehicle %s: %w", vehicleID.String(), err)
	}
	defer rows.Close()

	ids := []uuid.UUID{listingID}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sibling listing: %w", err)
		}
		if id != listingID {
			ids = append(ids, id)
		}
	}

	return ids, rows.Err()
}

// GetHostPayoutAccount returns the gateway recipient id of the host, or an
// empty string when the host has not onboarded.
func (c *Catalog) GetHostPayoutAccount(ctx context.Context, hostID uuid.UUID) (string, error) {
	var recipient string
	err := c.db.QueryRow(ctx,
		`SELECT recipient_id FROM host_payout_accounts WHERE host_id = $1`, hostID,
	).Scan(&recipient)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		c.log.Error("Failed to read payout account", zap.Error(err), zap.String("host_id", hostID.String()))
		return "", fmt.Errorf("read payout account of host %s: %w", hostID.String(), err)
	}
	return recipient, nil
}

// DaysInRange lists the start-of-day of every calendar day (in start's
// location) that [start, end) touches.
func DaysInRange(start, end time.Time) []time.Time {
	if !start.Before(end) {
		return nil
	}
	last := now.With(end.Add(-time.Nanosecond)).BeginningOfDay()

	var days []time.Time
	for d := now.With(start).BeginningOfDay(); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
