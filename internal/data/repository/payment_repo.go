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

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByGatewayRef(ctx context.Context, gatewayRef string) (*entity.Payment, error)
	FindByGatewayRefForUpdate(ctx context.Context, gatewayRef string) (*entity.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error)
	FindPendingByBookingAndType(ctx context.Context, bookingID uuid.UUID, paymentType entity.PaymentType) (*entity.Payment, error)
	FindLatestByBookingAndType(ctx context.Context, bookingID uuid.UUID, paymentType entity.PaymentType) (*entity.Payment, error)
	Update(ctx context.Context, payment *entity.Payment) error
}

const paymentColumns = `id, booking_id, type, amount, currency, status, manual_capture,
	captured_amount, refunded_amount, gateway_ref, client_secret, idempotency_key,
	failure_reason, metadata, created_at, updated_at`

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Type,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.ManualCapture,
		payment.CapturedAmount,
		payment.RefundedAmount,
		payment.GatewayRef,
		payment.ClientSecret,
		payment.IdempotencyKey,
		payment.FailureReason,
		payment.Metadata,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("type", string(payment.Type)),
		)
		return fmt.Errorf("create payment for booking %s: %w", payment.BookingID.String(), err)
	}

	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "find payment by ID", `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *paymentRepository) FindByGatewayRef(ctx context.Context, gatewayRef string) (*entity.Payment, error) {
	return r.findOne(ctx, "find payment by gateway ref", `SELECT `+paymentColumns+` FROM payments WHERE gateway_ref = $1`, gatewayRef)
}

func (r *paymentRepository) FindByGatewayRefForUpdate(ctx context.Context, gatewayRef string) (*entity.Payment, error) {
	return r.findOne(ctx, "find payment by gateway ref", `SELECT `+paymentColumns+` FROM payments WHERE gateway_ref = $1 FOR UPDATE`, gatewayRef)
}

func (r *paymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error) {
	return r.findOne(ctx, "find payment by idempotency key", `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
}

func (r *paymentRepository) FindPendingByBookingAndType(ctx context.Context, bookingID uuid.UUID, paymentType entity.PaymentType) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND type = $2 AND status = 'PENDING'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.findOne(ctx, "find pending payment", query, bookingID, paymentType)
}

func (r *paymentRepository) FindLatestByBookingAndType(ctx context.Context, bookingID uuid.UUID, paymentType entity.PaymentType) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.findOne(ctx, "find latest payment", query, bookingID, paymentType)
}

func (r *paymentRepository) findOne(ctx context.Context, op, query string, args ...any) (*entity.Payment, error) {
	var p entity.Payment
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.BookingID,
		&p.Type,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.ManualCapture,
		&p.CapturedAmount,
		&p.RefundedAmount,
		&p.GatewayRef,
		&p.ClientSecret,
		&p.IdempotencyKey,
		&p.FailureReason,
		&p.Metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.Any("args", args))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, captured_amount = $3, refunded_amount = $4,
		    failure_reason = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.Status,
		payment.CapturedAmount,
		payment.RefundedAmount,
		payment.FailureReason,
		payment.Metadata,
		payment.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update payment",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		return fmt.Errorf("update payment %s: %w", payment.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", payment.ID.String())
	}

	return nil
}
