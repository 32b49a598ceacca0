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

type DamageClaimRepository interface {
	Create(ctx context.Context, claim *entity.DamageClaim) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.DamageClaim, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.DamageClaim, error)
	FindNotClosedByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.DamageClaim, error)
	Update(ctx context.Context, claim *entity.DamageClaim) error

	// Reliability inputs
	CountRejectedByHost(ctx context.Context, hostID uuid.UUID) (int64, error)
	CountUpheldAgainstRenter(ctx context.Context, renterID uuid.UUID) (int64, error)

	// Scheduler queries
	FindAwaitingRenterSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error)
	FindAwaitingAdminRespondedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error)
}

const claimColumns = `id, booking_id, host_id, renter_id, category, amount_requested, currency,
	justification, before_photo_urls, after_photo_urls, quote_url, status, confidence_score,
	renter_response, renter_comment, auto_accepted, submitted_at, renter_responded_at,
	decided_amount, decided_by, decided_at, admin_note, auto_decided, closed_at,
	created_at, updated_at`

type damageClaimRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewDamageClaimRepository(db database.Querier, log *zap.Logger) DamageClaimRepository {
	return &damageClaimRepository{
		db:  db,
		log: log.With(zap.String("repository", "damage_claim")),
	}
}

func scanClaim(row pgx.Row) (*entity.DamageClaim, error) {
	var c entity.DamageClaim
	err := row.Scan(
		&c.ID,
		&c.BookingID,
		&c.HostID,
		&c.RenterID,
		&c.Category,
		&c.AmountRequested,
		&c.Currency,
		&c.Justification,
		&c.BeforePhotoURLs,
		&c.AfterPhotoURLs,
		&c.QuoteURL,
		&c.Status,
		&c.ConfidenceScore,
		&c.RenterResponse,
		&c.RenterComment,
		&c.AutoAccepted,
		&c.SubmittedAt,
		&c.RenterRespondedAt,
		&c.DecidedAmount,
		&c.DecidedBy,
		&c.DecidedAt,
		&c.AdminNote,
		&c.AutoDecided,
		&c.ClosedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *damageClaimRepository) Create(ctx context.Context, claim *entity.DamageClaim) error {
	query := `
		INSERT INTO damage_claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	_, err := r.db.Exec(ctx, query,
		claim.ID,
		claim.BookingID,
		claim.HostID,
		claim.RenterID,
		claim.Category,
		claim.AmountRequested,
		claim.Currency,
		claim.Justification,
		claim.BeforePhotoURLs,
		claim.AfterPhotoURLs,
		claim.QuoteURL,
		claim.Status,
		claim.ConfidenceScore,
		claim.RenterResponse,
		claim.RenterComment,
		claim.AutoAccepted,
		claim.SubmittedAt,
		claim.RenterRespondedAt,
		claim.DecidedAmount,
		claim.DecidedBy,
		claim.DecidedAt,
		claim.AdminNote,
		claim.AutoDecided,
		claim.ClosedAt,
		claim.CreatedAt,
		claim.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create damage claim",
			zap.Error(err),
			zap.String("booking_id", claim.BookingID.String()),
		)
		return fmt.Errorf("create damage claim for booking %s: %w", claim.BookingID.String(), err)
	}

	return nil
}

func (r *damageClaimRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.DamageClaim, error) {
	return r.findOne(ctx, `SELECT `+claimColumns+` FROM damage_claims WHERE id = $1`, id)
}

func (r *damageClaimRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.DamageClaim, error) {
	return r.findOne(ctx, `SELECT `+claimColumns+` FROM damage_claims WHERE id = $1 FOR UPDATE`, id)
}

func (r *damageClaimRepository) FindNotClosedByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.DamageClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM damage_claims
		WHERE booking_id = $1 AND status <> 'CLOSED'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, bookingID)
}

func (r *damageClaimRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.DamageClaim, error) {
	claim, err := scanClaim(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find damage claim", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("find damage claim %s: %w", id.String(), err)
	}
	return claim, nil
}

func (r *damageClaimRepository) Update(ctx context.Context, claim *entity.DamageClaim) error {
	query := `
		UPDATE damage_claims
		SET category = $2, amount_requested = $3, justification = $4,
		    before_photo_urls = $5, after_photo_urls = $6, quote_url = $7, status = $8,
		    confidence_score = $9, renter_response = $10, renter_comment = $11,
		    auto_accepted = $12, submitted_at = $13, renter_responded_at = $14,
		    decided_amount = $15, decided_by = $16, decided_at = $17, admin_note = $18,
		    auto_decided = $19, closed_at = $20, updated_at = $21
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		claim.ID,
		claim.Category,
		claim.AmountRequested,
		claim.Justification,
		claim.BeforePhotoURLs,
		claim.AfterPhotoURLs,
		claim.QuoteURL,
		claim.Status,
		claim.ConfidenceScore,
		claim.RenterResponse,
		claim.RenterComment,
		claim.AutoAccepted,
		claim.SubmittedAt,
		claim.RenterRespondedAt,
		claim.DecidedAmount,
		claim.DecidedBy,
		claim.DecidedAt,
		claim.AdminNote,
		claim.AutoDecided,
		claim.ClosedAt,
		claim.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update damage claim",
			zap.Error(err),
			zap.String("claim_id", claim.ID.String()),
		)
		return fmt.Errorf("update damage claim %s: %w", claim.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("damage claim %s not found", claim.ID.String())
	}

	return nil
}

func (r *damageClaimRepository) CountRejectedByHost(ctx context.Context, hostID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*) FROM damage_claims
		WHERE host_id = $1 AND (status = 'ADMIN_REJECTED' OR (status = 'CLOSED' AND decided_amount = 0))
	`
	return r.count(ctx, query, hostID)
}

func (r *damageClaimRepository) CountUpheldAgainstRenter(ctx context.Context, renterID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*) FROM damage_claims
		WHERE renter_id = $1 AND decided_amount > 0
		  AND status IN ('ADMIN_APPROVED', 'ADMIN_ADJUSTED', 'CLOSED')
	`
	return r.count(ctx, query, renterID)
}

func (r *damageClaimRepository) count(ctx context.Context, query string, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count damage claims",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count damage claims for %s: %w", userID.String(), err)
	}
	return count, nil
}

func (r *damageClaimRepository) FindAwaitingRenterSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM damage_claims
		WHERE status = 'AWAITING_RENTER_RESPONSE' AND submitted_at <= $1
		ORDER BY submitted_at
		LIMIT $2
	`
	return r.findMany(ctx, query, cutoff, limit)
}

func (r *damageClaimRepository) FindAwaitingAdminRespondedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM damage_claims
		WHERE status = 'AWAITING_ADMIN_REVIEW' AND renter_responded_at <= $1
		ORDER BY renter_responded_at
		LIMIT $2
	`
	return r.findMany(ctx, query, cutoff, limit)
}

func (r *damageClaimRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.DamageClaim, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query damage claims", zap.Error(err))
		return nil, fmt.Errorf("query damage claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.DamageClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			r.log.Error("Failed to scan damage claim row", zap.Error(err))
			return nil, fmt.Errorf("scan damage claim row: %w", err)
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}
