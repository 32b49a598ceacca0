package usecase

import (
	"context"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/data/repository"

	"github.com/google/uuid"
)

type timelineEntry struct {
	bookingID uuid.UUID
	eventType entity.TimelineEventType
	actorID   *uuid.UUID
	automatic bool
	payload   map[string]any
}

func appendTimeline(ctx context.Context, repo *repository.Repository, now time.Time, e timelineEntry) error {
	payload := e.payload
	if payload == nil {
		payload = map[string]any{}
	}
	return repo.Timeline.Append(ctx, &entity.TimelineEvent{
		ID:        uuid.New(),
		BookingID: e.bookingID,
		EventType: e.eventType,
		ActorID:   e.actorID,
		Automatic: e.automatic,
		Payload:   payload,
		CreatedAt: now,
	})
}

func actor(id uuid.UUID) *uuid.UUID {
	return &id
}
