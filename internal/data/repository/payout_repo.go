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

type PayoutRepository interface {
	Create(ctx context.Context, payout *entity.HostPayout) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.HostPayout, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.HostPayout, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.HostPayout, error)
	Update(ctx context.Context, payout *entity.HostPayout) error

	// Business queries
	FindDue(ctx context.Context, now time.Time, limit int) ([]*entity.HostPayout, error)
	ClaimForProcessing(ctx context.Context, payoutID uuid.UUID, now time.Time, retryFailed bool) (bool, error)
	CancelUnpaidByBookingID(ctx context.Context, bookingID uuid.UUID, now time.Time) (int64, error)
}

const payoutColumns = `id, booking_id, host_id, total_amount, commission_amount, host_amount,
	currency, status, scheduled_at, transfer_ref, failure_reason, processed_at, paid_at,
	created_at, updated_at`

type payoutRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPayoutRepository(db database.Querier, log *zap.Logger) PayoutRepository {
	return &payoutRepository{
		db:  db,
		log: log.With(zap.String("repository", "payout")),
	}
}

func scanPayout(row pgx.Row) (*entity.HostPayout, error) {
	var p entity.HostPayout
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.HostID,
		&p.TotalAmount,
		&p.CommissionAmount,
		&p.HostAmount,
		&p.Currency,
		&p.Status,
		&p.ScheduledAt,
		&p.TransferRef,
		&p.FailureReason,
		&p.ProcessedAt,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRepository) Create(ctx context.Context, payout *entity.HostPayout) error {
	query := `
		INSERT INTO host_payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Exec(ctx, query,
		payout.ID,
		payout.BookingID,
		payout.HostID,
		payout.TotalAmount,
		payout.CommissionAmount,
		payout.HostAmount,
		payout.Currency,
		payout.Status,
		payout.ScheduledAt,
		payout.TransferRef,
		payout.FailureReason,
		payout.ProcessedAt,
		payout.PaidAt,
		payout.CreatedAt,
		payout.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payout",
			zap.Error(err),
			zap.String("booking_id", payout.BookingID.String()),
		)
		return fmt.Errorf("create payout for booking %s: %w", payout.BookingID.String(), err)
	}

	return nil
}

func (r *payoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.HostPayout, error) {
	return r.findOne(ctx, `SELECT `+payoutColumns+` FROM host_payouts WHERE id = $1`, id)
}

func (r *payoutRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.HostPayout, error) {
	return r.findOne(ctx, `SELECT `+payoutColumns+` FROM host_payouts WHERE id = $1 FOR UPDATE`, id)
}

func (r *payoutRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.HostPayout, error) {
	return r.findOne(ctx, `SELECT `+payoutColumns+` FROM host_payouts WHERE booking_id = $1`, bookingID)
}

func (r *payoutRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.HostPayout, error) {
	payout, err := scanPayout(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("find payout %s: %w", id.String(), err)
	}
	return payout, nil
}

func (r *payoutRepository) Update(ctx context.Context, payout *entity.HostPayout) error {
	query := `
		UPDATE host_payouts
		SET status = $2, transfer_ref = $3, failure_reason = $4, processed_at = $5,
		    paid_at = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		payout.ID,
		payout.Status,
		payout.TransferRef,
		payout.FailureReason,
		payout.ProcessedAt,
		payout.PaidAt,
		payout.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update payout",
			zap.Error(err),
			zap.String("payout_id", payout.ID.String()),
		)
		return fmt.Errorf("update payout %s: %w", payout.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payout %s not found", payout.ID.String())
	}

	return nil
}

// FindDue lists scheduled payouts whose rental has ended on a booking that
// was not cancelled.
func (r *payoutRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*entity.HostPayout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM host_payouts p
		WHERE p.status = 'SCHEDULED' AND p.scheduled_at <= $1
		  AND EXISTS (
		        SELECT 1 FROM bookings b
		        WHERE b.id = p.booking_id AND b.status IN ('CONFIRMED', 'IN_PROGRESS', 'COMPLETED')
		  )
		ORDER BY p.scheduled_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find due payouts", zap.Error(err))
		return nil, fmt.Errorf("find due payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*entity.HostPayout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			r.log.Error("Failed to scan payout row", zap.Error(err))
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, payout)
	}

	return payouts, rows.Err()
}

// ClaimForProcessing moves a payout SCHEDULED -> PROCESSING, and FAILED ->
// PROCESSING when retryFailed is set. Only one caller can win; the others
// get false.
func (r *payoutRepository) ClaimForProcessing(ctx context.Context, payoutID uuid.UUID, now time.Time, retryFailed bool) (bool, error) {
	query := `
		UPDATE host_payouts
		SET status = 'PROCESSING', processed_at = $2, updated_at = $2
		WHERE id = $1 AND (status = 'SCHEDULED' OR ($3 AND status = 'FAILED'))
	`

	result, err := r.db.Exec(ctx, query, payoutID, now, retryFailed)
	if err != nil {
		r.log.Error("Failed to claim payout for processing",
			zap.Error(err),
			zap.String("payout_id", payoutID.String()),
		)
		return false, fmt.Errorf("claim payout %s: %w", payoutID.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *payoutRepository) CancelUnpaidByBookingID(ctx context.Context, bookingID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE host_payouts
		SET status = 'CANCELLED', updated_at = $2
		WHERE booking_id = $1 AND status IN ('SCHEDULED', 'FAILED')
	`

	result, err := r.db.Exec(ctx, query, bookingID, now)
	if err != nil {
		r.log.Error("Failed to cancel payouts for booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return 0, fmt.Errorf("cancel payouts for booking %s: %w", bookingID.String(), err)
	}

	return result.RowsAffected(), nil
}
