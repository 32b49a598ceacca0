package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const relayCursor = "timeline-kafka"

type Publisher interface {
	PublishBatch(ctx context.Context, msgs []events.Message) error
}

type timelineSource interface {
	FindAfterSeq(ctx context.Context, seq int64, limit int) ([]*entity.TimelineEvent, error)
}

type cursorStore interface {
	Get(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, seq int64) error
}

// TimelineRelay forwards timeline events to the broker in Seq order. The
// cursor only moves after the broker acknowledges a batch, so a crash
// replays the batch rather than losing it.
type TimelineRelay struct {
	timeline  timelineSource
	cursors   cursorStore
	publisher Publisher
	batch     int
	log       *zap.Logger
}

func NewTimelineRelay(timeline timelineSource, cursors cursorStore, publisher Publisher, log *zap.Logger) *TimelineRelay {
	return &TimelineRelay{
		timeline:  timeline,
		cursors:   cursors,
		publisher: publisher,
		batch:     sweepLimit,
		log:       log.With(zap.String("component", "timeline-relay")),
	}
}

type timelineMessage struct {
	Seq       int64                    `json:"seq"`
	ID        uuid.UUID                `json:"id"`
	BookingID uuid.UUID                `json:"booking_id"`
	EventType entity.TimelineEventType `json:"event_type"`
	ActorID   *uuid.UUID               `json:"actor_id,omitempty"`
	Automatic bool                     `json:"automatic"`
	Payload   map[string]any           `json:"payload,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// RelayOnce drains the backlog in batches until a short batch is read.
func (r *TimelineRelay) RelayOnce(ctx context.Context) error {
	cursor, err := r.cursors.Get(ctx, relayCursor)
	if err != nil {
		return fmt.Errorf("read relay cursor: %w", err)
	}

	for {
		batch, err := r.timeline.FindAfterSeq(ctx, cursor, r.batch)
		if err != nil {
			return fmt.Errorf("read timeline after %d: %w", cursor, err)
		}
		if len(batch) == 0 {
			return nil
		}

		msgs := make([]events.Message, 0, len(batch))
		for _, e := range batch {
			value, err := json.Marshal(timelineMessage{
				Seq:       e.Seq,
				ID:        e.ID,
				BookingID: e.BookingID,
				EventType: e.EventType,
				ActorID:   e.ActorID,
				Automatic: e.Automatic,
				Payload:   e.Payload,
				CreatedAt: e.CreatedAt,
			})
			if err != nil {
				return fmt.Errorf("encode timeline event %d: %w", e.Seq, err)
			}
			msgs = append(msgs, events.Message{
				Key:   e.BookingID.String(),
				Value: value,
				Headers: map[string]string{
					"event_type": string(e.EventType),
				},
			})
		}

		if err := r.publisher.PublishBatch(ctx, msgs); err != nil {
			return fmt.Errorf("publish timeline batch: %w", err)
		}

		last := batch[len(batch)-1].Seq
		if err := r.cursors.Set(ctx, relayCursor, last); err != nil {
			return fmt.Errorf("advance relay cursor to %d: %w", last, err)
		}
		r.log.Debug("Timeline batch relayed", zap.Int("count", len(batch)), zap.Int64("seq", last))
		cursor = last

		if len(batch) < r.batch {
			return nil
		}
	}
}
