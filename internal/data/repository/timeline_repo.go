package repository

import (
	"context"
	"fmt"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TimelineRepository is append-only: there is no update or delete.
type TimelineRepository interface {
	Append(ctx context.Context, event *entity.TimelineEvent) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.TimelineEvent, error)
	FindAfterSeq(ctx context.Context, seq int64, limit int) ([]*entity.TimelineEvent, error)
}

const timelineColumns = `seq, id, booking_id, event_type, actor_id, automatic, payload, created_at`

type timelineRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTimelineRepository(db database.Querier, log *zap.Logger) TimelineRepository {
	return &timelineRepository{
		db:  db,
		log: log.With(zap.String("repository", "timeline")),
	}
}

func (r *timelineRepository) Append(ctx context.Context, event *entity.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (id, booking_id, event_type, actor_id, automatic, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`

	err := r.db.QueryRow(ctx, query,
		event.ID,
		event.BookingID,
		event.EventType,
		event.ActorID,
		event.Automatic,
		event.Payload,
		event.CreatedAt,
	).Scan(&event.Seq)

	if err != nil {
		r.log.Error("Failed to append timeline event",
			zap.Error(err),
			zap.String("booking_id", event.BookingID.String()),
			zap.String("event_type", string(event.EventType)),
		)
		return fmt.Errorf("append timeline event %s for booking %s: %w", event.EventType, event.BookingID.String(), err)
	}

	return nil
}

func (r *timelineRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.TimelineEvent, error) {
	query := `SELECT ` + timelineColumns + ` FROM timeline_events WHERE booking_id = $1 ORDER BY seq`
	return r.findMany(ctx, query, bookingID)
}

func (r *timelineRepository) FindAfterSeq(ctx context.Context, seq int64, limit int) ([]*entity.TimelineEvent, error) {
	query := `SELECT ` + timelineColumns + ` FROM timeline_events WHERE seq > $1 ORDER BY seq LIMIT $2`
	return r.findMany(ctx, query, seq, limit)
}

func (r *timelineRepository) findMany(ctx context.Context, query string, args ...any) ([]*entity.TimelineEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query timeline events", zap.Error(err))
		return nil, fmt.Errorf("query timeline events: %w", err)
	}
	defer rows.Close()

	var events []*entity.TimelineEvent
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			r.log.Error("Failed to scan timeline row", zap.Error(err))
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanTimelineEvent(row pgx.Row) (*entity.TimelineEvent, error) {
	var e entity.TimelineEvent
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.BookingID,
		&e.EventType,
		&e.ActorID,
		&e.Automatic,
		&e.Payload,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
