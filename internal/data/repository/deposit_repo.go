package repository

import (
	"context"
	"errors"
	"fmt"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type DepositRepository interface {
	Create(ctx context.Context, deposit *entity.Deposit) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Deposit, error)
	FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Deposit, error)
	Update(ctx context.Context, deposit *entity.Deposit) error
}

const depositColumns = `id, booking_id, payment_id, hold_amount, captured_amount, currency,
	status, resolved_by, resolved_at, resolution_reason, created_at, updated_at`

type depositRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewDepositRepository(db database.Querier, log *zap.Logger) DepositRepository {
	return &depositRepository{
		db:  db,
		log: log.With(zap.String("repository", "deposit")),
	}
}

func (r *depositRepository) Create(ctx context.Context, deposit *entity.Deposit) error {
	query := `
		INSERT INTO deposits (` + depositColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		deposit.ID,
		deposit.BookingID,
		deposit.PaymentID,
		deposit.HoldAmount,
		deposit.CapturedAmount,
		deposit.Currency,
		deposit.Status,
		deposit.ResolvedBy,
		deposit.ResolvedAt,
		deposit.ResolutionReason,
		deposit.CreatedAt,
		deposit.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create deposit",
			zap.Error(err),
			zap.String("booking_id", deposit.BookingID.String()),
		)
		return fmt.Errorf("create deposit for booking %s: %w", deposit.BookingID.String(), err)
	}

	return nil
}

func (r *depositRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Deposit, error) {
	return r.findOne(ctx, `SELECT `+depositColumns+` FROM deposits WHERE booking_id = $1`, bookingID)
}

func (r *depositRepository) FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Deposit, error) {
	return r.findOne(ctx, `SELECT `+depositColumns+` FROM deposits WHERE booking_id = $1 FOR UPDATE`, bookingID)
}

func (r *depositRepository) findOne(ctx context.Context, query string, bookingID uuid.UUID) (*entity.Deposit, error) {
	var d entity.Deposit
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&d.ID,
		&d.BookingID,
		&d.PaymentID,
		&d.HoldAmount,
		&d.CapturedAmount,
		&d.Currency,
		&d.Status,
		&d.ResolvedBy,
		&d.ResolvedAt,
		&d.ResolutionReason,
		&d.CreatedAt,
		&d.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find deposit by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find deposit by booking ID %s: %w", bookingID.String(), err)
	}

	return &d, nil
}

func (r *depositRepository) Update(ctx context.Context, deposit *entity.Deposit) error {
	query := `
		UPDATE deposits
		SET status = $2, captured_amount = $3, resolved_by = $4, resolved_at = $5,
		    resolution_reason = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		deposit.ID,
		deposit.Status,
		deposit.CapturedAmount,
		deposit.ResolvedBy,
		deposit.ResolvedAt,
		deposit.ResolutionReason,
		deposit.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update deposit",
			zap.Error(err),
			zap.String("deposit_id", deposit.ID.String()),
		)
		return fmt.Errorf("update deposit %s: %w", deposit.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("deposit %s not found", deposit.ID.String())
	}

	return nil
}
