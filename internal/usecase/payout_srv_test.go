package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/notify"
)

func (f *fixture) scheduledPayout(t *testing.T, status entity.BookingStatus) *entity.HostPayout {
	t.Helper()
	b := f.seedBooking(status, -72*time.Hour, 48*time.Hour)
	payout, err := f.svc.Payout.(*payoutService).schedule(context.Background(), f.store.repository(), b)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return payout
}

func TestSplitCommission(t *testing.T) {
	tests := []struct {
		total, commission, host float64
	}{
		{300, 45, 255},
		{99.99, 15, 84.99},
		{0, 0, 0},
	}
	for _, tt := range tests {
		commission, host := SplitCommission(tt.total)
		if commission != tt.commission || host != tt.host {
			t.Errorf("SplitCommission(%.2f) = %.2f/%.2f, want %.2f/%.2f", tt.total, commission, host, tt.commission, tt.host)
		}
	}
}

func TestProcessDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	due := f.scheduledPayout(t, entity.BookingStatusCompleted)
	cancelled := f.scheduledPayout(t, entity.BookingStatusCancelled)
	future := f.seedBooking(entity.BookingStatusConfirmed, 24*time.Hour, 48*time.Hour)
	if _, err := f.svc.Payout.(*payoutService).schedule(ctx, f.store.repository(), future); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	res, err := f.svc.Payout.ProcessDue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scanned != 1 || res.Processed != 1 {
		t.Fatalf("unexpected sweep %+v", res)
	}

	paid := f.store.payouts[due.ID]
	if paid.Status != entity.PayoutStatusPaid || paid.TransferRef == nil || paid.PaidAt == nil {
		t.Fatalf("unexpected payout %+v", paid)
	}
	if len(f.gateway.transfers) != 1 || f.gateway.transfers[0].Amount != 255 || f.gateway.transfers[0].Destination != "recp_host" {
		t.Fatalf("unexpected transfers %+v", f.gateway.transfers)
	}
	if f.store.payouts[cancelled.ID].Status != entity.PayoutStatusScheduled {
		t.Fatal("payouts of cancelled bookings are never transferred")
	}
	if f.notifier.count(notify.TypePayoutPaid) != 1 {
		t.Fatal("expected the host to be notified")
	}

	if res, _ := f.svc.Payout.ProcessDue(ctx, 10); res.Processed != 0 {
		t.Fatalf("second sweep paid again: %+v", res)
	}
}

func TestProcessDueWithoutPayoutAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	delete(f.catalog.accounts, f.hostID)
	payout := f.scheduledPayout(t, entity.BookingStatusCompleted)

	res, err := f.svc.Payout.ProcessDue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("unexpected sweep %+v", res)
	}
	got := f.store.payouts[payout.ID]
	if got.Status != entity.PayoutStatusFailed || got.FailureReason == nil {
		t.Fatalf("unexpected payout %+v", got)
	}
	if len(f.gateway.transfers) != 0 {
		t.Fatal("no transfer expected")
	}

	if res, _ := f.svc.Payout.ProcessDue(ctx, 10); res.Scanned != 0 {
		t.Fatalf("the sweep must not retry a FAILED payout, got %+v", res)
	}

	f.catalog.accounts[f.hostID] = "recp_host"
	paid, err := f.svc.Payout.ForceProcess(ctx, f.adminID, payout.ID.String())
	if err != nil {
		t.Fatalf("force process after adding the account: %v", err)
	}
	if paid.Status != entity.PayoutStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
	if len(f.gateway.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.gateway.transfers))
	}
	if got := f.store.payouts[payout.ID]; got.FailureReason != nil {
		t.Fatalf("failure reason kept after payment: %q", *got.FailureReason)
	}
}

func TestForceProcessAndReverse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	payout := f.scheduledPayout(t, entity.BookingStatusCompleted)
	reason := &request.ReversePayoutRequest{Reason: "chargeback on the booking payment"}

	if _, err := f.svc.Payout.Reverse(ctx, f.adminID, payout.ID.String(), reason); !errors.Is(err, ErrConflict) {
		t.Fatalf("reverse unpaid: expected conflict, got %v", err)
	}

	paid, err := f.svc.Payout.ForceProcess(ctx, f.adminID, payout.ID.String())
	if err != nil {
		t.Fatalf("force process: %v", err)
	}
	if paid.Status != entity.PayoutStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
	if _, err := f.svc.Payout.ForceProcess(ctx, f.adminID, payout.ID.String()); !errors.Is(err, ErrConflict) {
		t.Fatalf("second force: expected conflict, got %v", err)
	}

	reversed, err := f.svc.Payout.Reverse(ctx, f.adminID, payout.ID.String(), reason)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversed.Status != entity.PayoutStatusReversed {
		t.Fatalf("status = %s, want REVERSED", reversed.Status)
	}
	if len(f.gateway.reversed) != 1 || f.gateway.reversed[0] != *paid.TransferRef {
		t.Fatalf("unexpected reversals %+v", f.gateway.reversed)
	}
}

func TestGetPayoutVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	payout := f.scheduledPayout(t, entity.BookingStatusCompleted)

	if _, err := f.svc.Payout.GetByBooking(ctx, f.hostID, false, payout.BookingID.String()); err != nil {
		t.Fatalf("host read: %v", err)
	}
	if _, err := f.svc.Payout.GetByBooking(ctx, f.guestID, false, payout.BookingID.String()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("guest read: expected forbidden, got %v", err)
	}
}
