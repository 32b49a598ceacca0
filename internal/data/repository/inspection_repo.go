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

type InspectionRepository interface {
	Create(ctx context.Context, inspection *entity.Inspection) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Inspection, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Inspection, error)
	FindByBookingAndType(ctx context.Context, bookingID uuid.UUID, inspectionType entity.InspectionType) (*entity.Inspection, error)
	Update(ctx context.Context, inspection *entity.Inspection) error

	// Scheduler queries
	FindDueForAutoValidation(ctx context.Context, now time.Time, limit int) ([]*entity.Inspection, error)
	FindValidatedReturnsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Inspection, error)
}

const inspectionColumns = `id, booking_id, type, mode, creator_role, creator_id, delegated,
	items, mileage, energy_level, documents_present, accessories, status, content_hash,
	submitted_at, validated_at, validated_by, auto_validated, contest_reason, metadata,
	score, created_at, updated_at`

type inspectionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewInspectionRepository(db database.Querier, log *zap.Logger) InspectionRepository {
	return &inspectionRepository{
		db:  db,
		log: log.With(zap.String("repository", "inspection")),
	}
}

func scanInspection(row pgx.Row) (*entity.Inspection, error) {
	var i entity.Inspection
	err := row.Scan(
		&i.ID,
		&i.BookingID,
		&i.Type,
		&i.Mode,
		&i.CreatorRole,
		&i.CreatorID,
		&i.Delegated,
		&i.Items,
		&i.Mileage,
		&i.EnergyLevel,
		&i.DocumentsPresent,
		&i.Accessories,
		&i.Status,
		&i.ContentHash,
		&i.SubmittedAt,
		&i.ValidatedAt,
		&i.ValidatedBy,
		&i.AutoValidated,
		&i.ContestReason,
		&i.Metadata,
		&i.Score,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *inspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	query := `
		INSERT INTO inspections (` + inspectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.db.Exec(ctx, query,
		inspection.ID,
		inspection.BookingID,
		inspection.Type,
		inspection.Mode,
		inspection.CreatorRole,
		inspection.CreatorID,
		inspection.Delegated,
		inspection.Items,
		inspection.Mileage,
		inspection.EnergyLevel,
		inspection.DocumentsPresent,
		inspection.Accessories,
		inspection.Status,
		inspection.ContentHash,
		inspection.SubmittedAt,
		inspection.ValidatedAt,
		inspection.ValidatedBy,
		inspection.AutoValidated,
		inspection.ContestReason,
		inspection.Metadata,
		inspection.Score,
		inspection.CreatedAt,
		inspection.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create inspection",
			zap.Error(err),
			zap.String("booking_id", inspection.BookingID.String()),
			zap.String("type", string(inspection.Type)),
		)
		return fmt.Errorf("create %s inspection for booking %s: %w", inspection.Type, inspection.BookingID.String(), err)
	}

	return nil
}

func (r *inspectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Inspection, error) {
	return r.findOne(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id)
}

func (r *inspectionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Inspection, error) {
	return r.findOne(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1 FOR UPDATE`, id)
}

func (r *inspectionRepository) FindByBookingAndType(ctx context.Context, bookingID uuid.UUID, inspectionType entity.InspectionType) (*entity.Inspection, error) {
	return r.findOne(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE booking_id = $1 AND type = $2`, bookingID, inspectionType)
}

func (r *inspectionRepository) findOne(ctx context.Context, query string, args ...any) (*entity.Inspection, error) {
	inspection, err := scanInspection(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find inspection", zap.Error(err), zap.Any("args", args))
		return nil, fmt.Errorf("find inspection: %w", err)
	}
	return inspection, nil
}

func (r *inspectionRepository) Update(ctx context.Context, inspection *entity.Inspection) error {
	query := `
		UPDATE inspections
		SET items = $2, mileage = $3, energy_level = $4, documents_present = $5,
		    accessories = $6, status = $7, content_hash = $8, submitted_at = $9,
		    validated_at = $10, validated_by = $11, auto_validated = $12,
		    contest_reason = $13, metadata = $14, score = $15, updated_at = $16
		WHERE id = $1 AND status <> 'VALIDATED'
	`

	result, err := r.db.Exec(ctx, query,
		inspection.ID,
		inspection.Items,
		inspection.Mileage,
		inspection.EnergyLevel,
		inspection.DocumentsPresent,
		inspection.Accessories,
		inspection.Status,
		inspection.ContentHash,
		inspection.SubmittedAt,
		inspection.ValidatedAt,
		inspection.ValidatedBy,
		inspection.AutoValidated,
		inspection.ContestReason,
		inspection.Metadata,
		inspection.Score,
		inspection.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update inspection",
			zap.Error(err),
			zap.String("inspection_id", inspection.ID.String()),
		)
		return fmt.Errorf("update inspection %s: %w", inspection.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("inspection %s not found or already validated", inspection.ID.String())
	}

	return nil
}

// FindDueForAutoValidation applies each inspection's own timer in SQL so
// rows still waiting on a longer timer never fill the page.
func (r *inspectionRepository) FindDueForAutoValidation(ctx context.Context, now time.Time, limit int) ([]*entity.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + `
		FROM inspections
		WHERE status = 'SUBMITTED'
		  AND submitted_at <= CASE
		        WHEN type = 'RETOUR' THEN $1::timestamptz
		        WHEN delegated THEN $2::timestamptz
		        ELSE $3::timestamptz
		      END
		ORDER BY submitted_at
		LIMIT $4
	`
	return r.findMany(ctx, query,
		now.Add(-entity.AutoValidateRetourAfter),
		now.Add(-entity.AutoValidateDelegatedAfter),
		now.Add(-entity.AutoValidateStandardAfter),
		limit,
	)
}

func (r *inspectionRepository) FindValidatedReturnsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Inspection, error) {
	query := `
		SELECT ` + inspectionColumns + `
		FROM inspections i
		WHERE i.type = 'RETOUR' AND i.status = 'VALIDATED' AND i.validated_at <= $1
		  AND EXISTS (
		        SELECT 1 FROM deposits d
		        WHERE d.booking_id = i.booking_id AND d.status = 'PREAUTHORIZED'
		  )
		  AND NOT EXISTS (
		        SELECT 1 FROM damage_claims c
		        WHERE c.booking_id = i.booking_id AND c.status <> 'CLOSED'
		  )
		ORDER BY i.validated_at
		LIMIT $2
	`
	return r.findMany(ctx, query, cutoff, limit)
}

func (r *inspectionRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.Inspection, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query inspections", zap.Error(err))
		return nil, fmt.Errorf("query inspections: %w", err)
	}
	defer rows.Close()

	var inspections []*entity.Inspection
	for rows.Next() {
		inspection, err := scanInspection(rows)
		if err != nil {
			r.log.Error("Failed to scan inspection row", zap.Error(err))
			return nil, fmt.Errorf("scan inspection row: %w", err)
		}
		inspections = append(inspections, inspection)
	}

	return inspections, rows.Err()
}
