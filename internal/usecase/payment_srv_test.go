package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"

	"github.com/google/uuid"
)

func intentRequest(b *entity.Booking, amount float64) *request.CreatePaymentIntentRequest {
	return &request.CreatePaymentIntentRequest{
		BookingID: b.ID.String(),
		Type:      "BOOKING",
		Amount:    amount,
		Currency:  "eur",
		Source:    "tokn_test",
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("retries reuse the pending payment", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)

		first, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(b, 300))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Reused || first.ManualCapture || first.Status != entity.PaymentStatusPending {
			t.Fatalf("unexpected intent %+v", first)
		}

		second, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(b, 300))
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if !second.Reused || second.PaymentID != first.PaymentID {
			t.Fatalf("expected reuse, got %+v", second)
		}
		if len(f.gateway.authorized) != 1 {
			t.Fatalf("authorizations = %d, want 1", len(f.gateway.authorized))
		}
	})

	t.Run("idempotency key bound to another booking conflicts", func(t *testing.T) {
		f := newFixture()
		a := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 24*time.Hour)
		b := f.seedBooking(entity.BookingStatusPending, 480*time.Hour, 24*time.Hour)
		key := "client-key-1"

		req := intentRequest(a, 300)
		req.IdempotencyKey = &key
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, req); err != nil {
			t.Fatalf("first: %v", err)
		}
		req = intentRequest(b, 300)
		req.IdempotencyKey = &key
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, req); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("amount must match the booking total", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(b, 299.99)); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("dates taken since creation", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		f.seedBooking(entity.BookingStatusConfirmed, 72*time.Hour, 24*time.Hour)
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(b, 300)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("another guest's payment in flight holds the dates", func(t *testing.T) {
		f := newFixture()
		first := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(first, 300)); err != nil {
			t.Fatalf("first guest: %v", err)
		}

		other := uuid.New()
		second := f.seedBooking(entity.BookingStatusPending, 72*time.Hour, 24*time.Hour)
		second.GuestID = other
		f.store.bookings[second.ID] = *second
		if _, err := f.svc.Payment.CreatePaymentIntent(ctx, other, intentRequest(second, 300)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if len(f.gateway.authorized) != 1 {
			t.Fatalf("authorizations = %d, want 1", len(f.gateway.authorized))
		}
	})

	t.Run("manual approval authorizes without capture", func(t *testing.T) {
		f := newFixture()
		f.listing.ManualApprovalRequired = true
		b := f.seedBooking(entity.BookingStatusPending, 72*time.Hour, 72*time.Hour)

		resp, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, intentRequest(b, 300))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.ManualCapture || resp.ApprovalDeadline == nil {
			t.Fatalf("unexpected intent %+v", resp)
		}
		if want := f.clock.Add(12 * time.Hour); !resp.ApprovalDeadline.Equal(want) {
			t.Fatalf("deadline = %s, want %s", resp.ApprovalDeadline, want)
		}
	})

	t.Run("caution type places a hold", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusConfirmed, 48*time.Hour, 72*time.Hour)
		req := intentRequest(b, 0)
		req.Type = "CAUTION"
		resp, err := f.svc.Payment.CreatePaymentIntent(ctx, f.guestID, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Type != entity.PaymentTypeCaution || resp.Amount != 500 {
			t.Fatalf("unexpected intent %+v", resp)
		}
	})
}

func TestHandlePaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms once and ignores redelivery", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		p := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 300, 0, false)

		for i := 0; i < 2; i++ {
			if err := f.svc.Payment.HandlePaymentSucceeded(ctx, p.GatewayRef); err != nil {
				t.Fatalf("delivery %d: %v", i, err)
			}
		}

		if got := f.booking(b.ID); got.Status != entity.BookingStatusConfirmed {
			t.Fatalf("status = %s, want CONFIRMED", got.Status)
		}
		if n := f.store.events(b.ID, entity.EventPaymentSucceeded); n != 1 {
			t.Fatalf("payment.succeeded events = %d, want 1", n)
		}
		if n := f.notifier.count(notify.TypeBookingConfirmed); n != 2 {
			t.Fatalf("confirmations = %d, want 2", n)
		}
		payout, _ := f.store.repository().Payout.FindByBookingID(ctx, b.ID)
		if payout == nil || !payout.ScheduledAt.Equal(b.EndAt) {
			t.Fatalf("unexpected payout %+v", payout)
		}
	})

	t.Run("manual booking waits for the host", func(t *testing.T) {
		f := newFixture()
		f.listing.ManualApprovalRequired = true
		b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		p := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 300, 0, true)

		if err := f.svc.Payment.HandlePaymentSucceeded(ctx, p.GatewayRef); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.booking(b.ID); got.Status != entity.BookingStatusPendingApproval {
			t.Fatalf("status = %s, want PENDING_APPROVAL", got.Status)
		}
		if f.notifier.count(notify.TypeBookingRequested) != 1 {
			t.Fatal("expected the host to be asked for approval")
		}
		if payout, _ := f.store.repository().Payout.FindByBookingID(ctx, b.ID); payout != nil {
			t.Fatal("no payout before approval")
		}
	})

	t.Run("late success on a cancelled booking is refunded", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusCancelled, 48*time.Hour, 72*time.Hour)
		p := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 300, 0, false)

		if err := f.svc.Payment.HandlePaymentSucceeded(ctx, p.GatewayRef); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, refunded := f.gateway.refunds[p.GatewayRef]; !refunded {
			t.Fatal("expected a refund")
		}
		got, _ := f.store.repository().Payment.FindByID(ctx, p.ID)
		if got.Status != entity.PaymentStatusRefunded {
			t.Fatalf("payment = %s, want REFUNDED", got.Status)
		}
	})

	t.Run("second success on a taken window is cancelled and refunded", func(t *testing.T) {
		f := newFixture()
		a := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
		b := f.seedBooking(entity.BookingStatusPending, 72*time.Hour, 24*time.Hour)
		pa := f.seedPayment(a.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 300, 0, false)
		pb := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 100, 0, false)

		for _, ref := range []string{pa.GatewayRef, pb.GatewayRef} {
			if err := f.svc.Payment.HandlePaymentSucceeded(ctx, ref); err != nil {
				t.Fatalf("%s: %v", ref, err)
			}
		}

		if got := f.booking(a.ID); got.Status != entity.BookingStatusConfirmed {
			t.Fatalf("first booking = %s, want CONFIRMED", got.Status)
		}
		lost := f.booking(b.ID)
		if lost.Status != entity.BookingStatusCancelled || lost.CancelledAt == nil {
			t.Fatalf("second booking = %+v, want CANCELLED", lost)
		}
		if _, refunded := f.gateway.refunds[pb.GatewayRef]; !refunded {
			t.Fatal("expected the second payment to be refunded")
		}
		got, _ := f.store.repository().Payment.FindByID(ctx, pb.ID)
		if got.Status != entity.PaymentStatusRefunded {
			t.Fatalf("payment = %s, want REFUNDED", got.Status)
		}
		if payout, _ := f.store.repository().Payout.FindByBookingID(ctx, b.ID); payout != nil {
			t.Fatal("no payout for a cancelled booking")
		}
	})

	t.Run("manual hold on a taken window is voided", func(t *testing.T) {
		f := newFixture()
		f.seedBooking(entity.BookingStatusConfirmed, 48*time.Hour, 72*time.Hour)
		b := f.seedBooking(entity.BookingStatusPending, 72*time.Hour, 24*time.Hour)
		p := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 100, 0, true)

		if err := f.svc.Payment.HandlePaymentSucceeded(ctx, p.GatewayRef); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.booking(b.ID); got.Status != entity.BookingStatusCancelled {
			t.Fatalf("status = %s, want CANCELLED", got.Status)
		}
		if f.gateway.cancels[p.GatewayRef] != 1 {
			t.Fatal("expected the hold to be voided")
		}
		if f.notifier.count(notify.TypeBookingConfirmed) != 0 {
			t.Fatal("a cancelled booking must not be confirmed to anyone")
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		f := newFixture()
		if err := f.svc.Payment.HandlePaymentSucceeded(ctx, "chrg_missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestHandlePaymentFailedReleasesCaution(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.seedBooking(entity.BookingStatusConfirmed, 48*time.Hour, 72*time.Hour)
	intent, err := f.svc.Deposit.CreateCautionHold(ctx, f.guestID, b.ID.String(), "tokn_test")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	payment, _ := f.store.repository().Payment.FindByID(ctx, mustParse(t, intent.PaymentID))

	if err := f.svc.Payment.HandlePaymentFailed(ctx, payment.GatewayRef, "insufficient_fund"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := f.deposit(b.ID); d.Status != entity.DepositStatusReleased {
		t.Fatalf("deposit = %s, want RELEASED", d.Status)
	}
	if f.gateway.cancels[payment.GatewayRef] != 0 {
		t.Fatal("a failed authorization has nothing to void")
	}
	if f.notifier.count(notify.TypePaymentFailed) != 1 {
		t.Fatal("expected the guest to be notified")
	}
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.seedBooking(entity.BookingStatusPending, 48*time.Hour, 72*time.Hour)
	p := f.seedPayment(b.ID, entity.PaymentTypeBooking, entity.PaymentStatusPending, 300, 0, false)
	payload := []byte(`{"key":"charge.complete"}`)
	f.gateway.event = &gateway.WebhookEvent{ID: "evnt_1", Type: gateway.WebhookPaymentSucceeded, GatewayRef: p.GatewayRef}

	if err := f.svc.Payment.HandleWebhook(ctx, payload, "deadbeef"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("bad signature: expected forbidden, got %v", err)
	}
	if got := f.booking(b.ID); got.Status != entity.BookingStatusPending {
		t.Fatal("unsigned webhook changed the booking")
	}

	if err := f.svc.Payment.HandleWebhook(ctx, payload, gateway.Sign(payload, testWebhookSecret)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.booking(b.ID); got.Status != entity.BookingStatusConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", got.Status)
	}
}
