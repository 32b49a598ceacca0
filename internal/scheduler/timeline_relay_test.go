package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memTimeline struct {
	events []*entity.TimelineEvent
}

func (m *memTimeline) FindAfterSeq(_ context.Context, seq int64, limit int) ([]*entity.TimelineEvent, error) {
	var out []*entity.TimelineEvent
	for _, e := range m.events {
		if e.Seq > seq {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memCursors struct {
	values map[string]int64
}

func (m *memCursors) Get(_ context.Context, name string) (int64, error) {
	return m.values[name], nil
}

func (m *memCursors) Set(_ context.Context, name string, seq int64) error {
	m.values[name] = seq
	return nil
}

type fakePublisher struct {
	batches [][]events.Message
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, msgs []events.Message) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, msgs)
	return nil
}

func seedTimeline(n int) *memTimeline {
	booking := uuid.New()
	tl := &memTimeline{}
	for i := 1; i <= n; i++ {
		tl.events = append(tl.events, &entity.TimelineEvent{
			Seq:       int64(i),
			ID:        uuid.New(),
			BookingID: booking,
			EventType: entity.EventBookingStatusChanged,
			Payload:   map[string]any{"n": i},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, i, 0, time.UTC),
		})
	}
	return tl
}

func TestRelayOncePublishesInOrderAndAdvancesCursor(t *testing.T) {
	tl := seedTimeline(5)
	cursors := &memCursors{values: map[string]int64{}}
	pub := &fakePublisher{}
	relay := NewTimelineRelay(tl, cursors, pub, zap.NewNop())
	relay.batch = 2

	if err := relay.RelayOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(pub.batches))
	}
	var seqs []int64
	for _, b := range pub.batches {
		for _, m := range b {
			var decoded timelineMessage
			if err := json.Unmarshal(m.Value, &decoded); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			if m.Key != decoded.BookingID.String() {
				t.Fatalf("expected booking id as key, got %s", m.Key)
			}
			if m.Headers["event_type"] != string(entity.EventBookingStatusChanged) {
				t.Fatalf("unexpected event_type header %q", m.Headers["event_type"])
			}
			seqs = append(seqs, decoded.Seq)
		}
	}
	for i, s := range seqs {
		if s != int64(i+1) {
			t.Fatalf("expected ordered seqs 1..5, got %v", seqs)
		}
	}
	if cursors.values[relayCursor] != 5 {
		t.Fatalf("expected cursor 5, got %d", cursors.values[relayCursor])
	}

	// Nothing new: no publish.
	if err := relay.RelayOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.batches) != 3 {
		t.Fatalf("expected no extra batches, got %d", len(pub.batches))
	}
}

func TestRelayOnceKeepsCursorWhenPublishFails(t *testing.T) {
	tl := seedTimeline(3)
	cursors := &memCursors{values: map[string]int64{relayCursor: 1}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	relay := NewTimelineRelay(tl, cursors, pub, zap.NewNop())

	if err := relay.RelayOnce(context.Background()); err == nil {
		t.Fatalf("expected publish error")
	}
	if cursors.values[relayCursor] != 1 {
		t.Fatalf("cursor must not move on failure, got %d", cursors.values[relayCursor])
	}

	pub.err = nil
	if err := relay.RelayOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 {
		t.Fatalf("expected retry to publish seqs 2 and 3, got %+v", pub.batches)
	}
	if cursors.values[relayCursor] != 3 {
		t.Fatalf("expected cursor 3, got %d", cursors.values[relayCursor])
	}
}
