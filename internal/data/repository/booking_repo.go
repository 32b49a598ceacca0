package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	Update(ctx context.Context, booking *entity.Booking) error

	// Business queries
	LockResource(ctx context.Context, resourceKey string) error
	CountOverlapping(ctx context.Context, q OverlapQuery) (int64, error)
	FindExpiredPendingApproval(ctx context.Context, now, staleBefore time.Time, limit int) ([]*entity.Booking, error)
	MarkApprovalExpired(ctx context.Context, bookingID uuid.UUID, now, staleBefore time.Time) (bool, error)
}

// OverlapQuery describes a [StartAt, EndAt) window on a set of listings
// (the listing and its siblings), widened to every booking of VehicleID when
// it is set. IncludePaymentInFlight also counts PENDING bookings that carry a
// booking payment the gateway has not settled yet.
type OverlapQuery struct {
	ListingIDs             []uuid.UUID
	VehicleID              *uuid.UUID
	StartAt                time.Time
	EndAt                  time.Time
	ExcludeBookingID       *uuid.UUID
	IncludePendingApproval bool
	IncludePaymentInFlight bool
	Now                    time.Time
}

const bookingColumns = `id, guest_id, host_id, listing_id, vehicle_id, start_at, end_at,
	total_amount, caution_amount, currency, status, car_rental, manual_approval,
	cancellation_policy, approval_deadline, approval_expired, options, price,
	cancelled_at, cancelled_by, cancel_reason, created_at, updated_at`

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.GuestID,
		&b.HostID,
		&b.ListingID,
		&b.VehicleID,
		&b.StartAt,
		&b.EndAt,
		&b.TotalAmount,
		&b.CautionAmount,
		&b.Currency,
		&b.Status,
		&b.CarRental,
		&b.ManualApproval,
		&b.CancellationPolicy,
		&b.ApprovalDeadline,
		&b.ApprovalExpired,
		&b.Options,
		&b.Price,
		&b.CancelledAt,
		&b.CancelledBy,
		&b.CancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.GuestID,
		booking.HostID,
		booking.ListingID,
		booking.VehicleID,
		booking.StartAt,
		booking.EndAt,
		booking.TotalAmount,
		booking.CautionAmount,
		booking.Currency,
		booking.Status,
		booking.CarRental,
		booking.ManualApproval,
		booking.CancellationPolicy,
		booking.ApprovalDeadline,
		booking.ApprovalExpired,
		booking.Options,
		booking.Price,
		booking.CancelledAt,
		booking.CancelledBy,
		booking.CancelReason,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("guest_id", booking.GuestID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID.String(), err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE guest_id = $1 OR host_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID.String(), err)
	}
	return r.collect(rows)
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE guest_id = $1 OR host_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET status = $2, approval_deadline = $3, approval_expired = $4,
		    cancelled_at = $5, cancelled_by = $6, cancel_reason = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Status,
		booking.ApprovalDeadline,
		booking.ApprovalExpired,
		booking.CancelledAt,
		booking.CancelledBy,
		booking.CancelReason,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", booking.ID.String())
	}

	return nil
}

// LockResource takes a transaction-scoped advisory lock so that overlap
// checks and writes on one vehicle or listing are serialized.
func (r *bookingRepository) LockResource(ctx context.Context, resourceKey string) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, resourceKey); err != nil {
		r.log.Error("Failed to lock bookable resource",
			zap.Error(err),
			zap.String("resource", resourceKey),
		)
		return fmt.Errorf("lock resource %s: %w", resourceKey, err)
	}
	return nil
}

func (r *bookingRepository) CountOverlapping(ctx context.Context, q OverlapQuery) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE (listing_id = ANY($1) OR ($2::uuid IS NOT NULL AND vehicle_id = $2))
		  AND start_at < $4 AND end_at > $3
		  AND ($5::uuid IS NULL OR id <> $5)
		  AND (
		        status IN ('CONFIRMED', 'IN_PROGRESS')
		     OR ($6 AND status = 'PENDING_APPROVAL' AND approval_expired = FALSE
		         AND (approval_deadline IS NULL OR approval_deadline > $7))
		     OR ($8 AND status = 'PENDING' AND EXISTS (
		             SELECT 1 FROM payments p
		             WHERE p.booking_id = bookings.id AND p.type = 'BOOKING' AND p.status = 'PENDING'
		         ))
		  )
	`

	var count int64
	err := r.db.QueryRow(ctx, query,
		q.ListingIDs,
		q.VehicleID,
		q.StartAt,
		q.EndAt,
		q.ExcludeBookingID,
		q.IncludePendingApproval,
		q.Now,
		q.IncludePaymentInFlight,
	).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count overlapping bookings",
			zap.Error(err),
			zap.Int("listings", len(q.ListingIDs)),
		)
		return 0, fmt.Errorf("count overlapping bookings: %w", err)
	}

	return count, nil
}

// FindExpiredPendingApproval returns PENDING_APPROVAL bookings past their
// deadline. Rows already flagged but still pending since before staleBefore
// come back too: the run that flagged them died before cancelling.
func (r *bookingRepository) FindExpiredPendingApproval(ctx context.Context, now, staleBefore time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'PENDING_APPROVAL'
		  AND approval_deadline IS NOT NULL
		  AND approval_deadline <= $1
		  AND (approval_expired = FALSE OR updated_at <= $2)
		ORDER BY approval_deadline
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, now, staleBefore, limit)
	if err != nil {
		r.log.Error("Failed to find expired pending approvals", zap.Error(err))
		return nil, fmt.Errorf("find expired pending approvals: %w", err)
	}
	return r.collect(rows)
}

// MarkApprovalExpired flips the one-shot approval_expired flag, or re-claims
// a flagged row left pending since before staleBefore. It returns false when
// another run holds the booking.
func (r *bookingRepository) MarkApprovalExpired(ctx context.Context, bookingID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET approval_expired = TRUE, updated_at = $2
		WHERE id = $1 AND status = 'PENDING_APPROVAL'
		  AND (approval_expired = FALSE OR updated_at <= $3)
	`

	result, err := r.db.Exec(ctx, query, bookingID, now, staleBefore)
	if err != nil {
		r.log.Error("Failed to mark approval expired",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return false, fmt.Errorf("mark booking %s approval expired: %w", bookingID.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *bookingRepository) collect(rows pgx.Rows) ([]*entity.Booking, error) {
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}
