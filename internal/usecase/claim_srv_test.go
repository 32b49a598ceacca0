package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/notify"

	"github.com/google/uuid"
)

// seedClaim stores a claim on b in the given status.
func (f *fixture) seedClaim(b *entity.Booking, status entity.ClaimStatus, amount float64) *entity.DamageClaim {
	c := &entity.DamageClaim{
		BookingID:       b.ID,
		HostID:          b.HostID,
		RenterID:        b.GuestID,
		Category:        entity.ClaimCategoryDent,
		AmountRequested: amount,
		Currency:        b.Currency,
		Justification:   "Dent on the rear left door, not on the departure photos.",
		BeforePhotoURLs: []string{"https://cdn.example.com/before.jpg"},
		AfterPhotoURLs:  []string{"https://cdn.example.com/after.jpg"},
		Status:          status,
	}
	c.ID = uuid.New()
	c.CreatedAt = f.clock
	c.UpdatedAt = f.clock
	if status != entity.ClaimStatusDraft {
		c.SubmittedAt = timePtr(f.clock)
	}
	if status == entity.ClaimStatusAwaitingAdminReview {
		c.RenterRespondedAt = timePtr(f.clock)
	}
	f.store.claims[c.ID] = *c
	return c
}

// returnedBooking is a completed car rental with a validated return and a
// held 500 deposit.
func (f *fixture) returnedBooking() *entity.Booking {
	b := f.seedBooking(entity.BookingStatusCompleted, -72*time.Hour, 70*time.Hour)
	f.seedDeposit(b.ID, 500)
	f.seedInspection(b, entity.InspectionTypeRetour, entity.InspectionStatusValidated)
	return b
}

func claimRequest(b *entity.Booking, amount float64, quote *string) *request.CreateClaimRequest {
	return &request.CreateClaimRequest{
		BookingID:       b.ID.String(),
		Category:        "SCRATCH",
		AmountRequested: amount,
		Justification:   "Long scratch along the passenger side.",
		BeforePhotoURLs: []string{"https://cdn.example.com/before.jpg"},
		AfterPhotoURLs:  []string{"https://cdn.example.com/after.jpg"},
		QuoteURL:        quote,
	}
}

func TestClaimCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("filed within the window", func(t *testing.T) {
		f := newFixture()
		b := f.returnedBooking()
		f.advance(2 * time.Hour)
		resp, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 120, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != entity.ClaimStatusDraft {
			t.Fatalf("status = %s, want DRAFT", resp.Status)
		}
	})

	t.Run("too late after the return inspection", func(t *testing.T) {
		f := newFixture()
		b := f.returnedBooking()
		f.advance(25 * time.Hour)
		_, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 120, nil))
		if !errors.Is(err, ErrConflict) || !strings.Contains(err.Error(), "24 hours") {
			t.Fatalf("expected filing window conflict, got %v", err)
		}
	})

	t.Run("large amounts need a quote", func(t *testing.T) {
		f := newFixture()
		b := f.returnedBooking()
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 180, nil)); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		quote := "https://cdn.example.com/quote.pdf"
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 180, &quote)); err != nil {
			t.Fatalf("with quote: unexpected error: %v", err)
		}
	})

	t.Run("one open claim per booking", func(t *testing.T) {
		f := newFixture()
		b := f.returnedBooking()
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 50, nil)); err != nil {
			t.Fatalf("first claim: %v", err)
		}
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 60, nil)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("requires a validated return", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusInProgress, -24*time.Hour, 48*time.Hour)
		f.seedDeposit(b.ID, 500)
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 50, nil)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("requires a held deposit", func(t *testing.T) {
		f := newFixture()
		b := f.seedBooking(entity.BookingStatusCompleted, -72*time.Hour, 70*time.Hour)
		f.seedInspection(b, entity.InspectionTypeRetour, entity.InspectionStatusValidated)
		_, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 50, nil))
		if !errors.Is(err, ErrConflict) || !strings.Contains(err.Error(), "deposit") {
			t.Fatalf("no deposit: expected conflict, got %v", err)
		}

		f.seedDeposit(b.ID, 500)
		released := f.deposit(b.ID)
		released.Status = entity.DepositStatusReleased
		f.store.deposits[released.ID] = released
		if _, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 50, nil)); !errors.Is(err, ErrConflict) {
			t.Fatalf("released deposit: expected conflict, got %v", err)
		}
	})

	t.Run("only the host files", func(t *testing.T) {
		f := newFixture()
		b := f.returnedBooking()
		if _, err := f.svc.Claim.Create(ctx, f.guestID, claimRequest(b, 50, nil)); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})
}

func TestClaimConfidence(t *testing.T) {
	quote := "https://cdn.example.com/quote.pdf"
	c := &entity.DamageClaim{
		BeforePhotoURLs: []string{"a"},
		AfterPhotoURLs:  []string{"b"},
		QuoteURL:        &quote,
		Justification:   strings.Repeat("x", 100),
	}
	if got := ClaimConfidence(c); got != 85 {
		t.Fatalf("confidence = %d, want 85", got)
	}
	c.Justification = strings.Repeat("x", 500)
	if got := ClaimConfidence(c); got != 100 {
		t.Fatalf("confidence = %d, want 100", got)
	}
}

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.returnedBooking()

	created, err := f.svc.Claim.Create(ctx, f.hostID, claimRequest(b, 120, nil))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	submitted, err := f.svc.Claim.Submit(ctx, f.hostID, created.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != entity.ClaimStatusAwaitingRenterResponse || submitted.ConfidenceScore == nil {
		t.Fatalf("unexpected claim %+v", submitted)
	}
	if f.notifier.count(notify.TypeClaimFiled) != 1 {
		t.Fatal("expected the renter to be notified")
	}

	if _, err := f.svc.Claim.RenterRespond(ctx, f.hostID, created.ID, &request.RenterResponseRequest{Response: "contest"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("host response: expected forbidden, got %v", err)
	}
	if _, err := f.svc.Claim.RenterRespond(ctx, f.guestID, created.ID, &request.RenterResponseRequest{Response: "contest"}); err != nil {
		t.Fatalf("respond: %v", err)
	}

	adjusted, err := f.svc.Claim.Adjust(ctx, f.adminID, created.ID, &request.AdjustClaimRequest{Amount: 80})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjusted.Status != entity.ClaimStatusAdminAdjusted || adjusted.DecidedAmount == nil || *adjusted.DecidedAmount != 80 {
		t.Fatalf("unexpected decision %+v", adjusted)
	}
	if d := f.deposit(b.ID); d.Status != entity.DepositStatusCapturedPartial || d.CapturedAmount != 80 {
		t.Fatalf("unexpected deposit %+v", d)
	}

	if _, err := f.svc.Claim.Approve(ctx, f.adminID, created.ID, &request.ClaimDecisionRequest{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second decision: expected conflict, got %v", err)
	}

	closed, err := f.svc.Claim.Close(ctx, f.adminID, created.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != entity.ClaimStatusClosed {
		t.Fatalf("status = %s, want CLOSED", closed.Status)
	}
}

func TestClaimApproveCapsAtHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.returnedBooking()
	c := f.seedClaim(b, entity.ClaimStatusAwaitingAdminReview, 900)

	resp, err := f.svc.Claim.Approve(ctx, f.adminID, c.ID.String(), &request.ClaimDecisionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *resp.DecidedAmount != 500 {
		t.Fatalf("decided = %.2f, want 500", *resp.DecidedAmount)
	}
	if d := f.deposit(b.ID); d.Status != entity.DepositStatusCapturedFull {
		t.Fatalf("deposit = %s, want CAPTURED_FULL", d.Status)
	}
}

func TestClaimTimeouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.returnedBooking()
	c := f.seedClaim(b, entity.ClaimStatusAwaitingRenterResponse, 100)

	f.advance(25 * time.Hour)
	res, err := f.svc.Claim.AutoAcceptDue(ctx, 10)
	if err != nil || res.Processed != 1 {
		t.Fatalf("auto-accept: res=%+v err=%v", res, err)
	}
	claim := f.store.claims[c.ID]
	if claim.Status != entity.ClaimStatusAwaitingAdminReview || !claim.AutoAccepted {
		t.Fatalf("unexpected claim %+v", claim)
	}

	f.advance(47 * time.Hour)
	if res, _ := f.svc.Claim.AutoRejectDue(ctx, 10); res.Scanned != 0 {
		t.Fatalf("nothing is due before 48h, got %+v", res)
	}

	f.advance(2 * time.Hour)
	res, err = f.svc.Claim.AutoRejectDue(ctx, 10)
	if err != nil || res.Processed != 1 {
		t.Fatalf("auto-reject: res=%+v err=%v", res, err)
	}
	claim = f.store.claims[c.ID]
	if claim.Status != entity.ClaimStatusAdminRejected || !claim.AutoDecided {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if d := f.deposit(b.ID); d.Status != entity.DepositStatusReleased {
		t.Fatalf("deposit = %s, want RELEASED", d.Status)
	}
	if f.store.events(b.ID, entity.EventClaimAutoRejected) != 1 {
		t.Fatal("expected a claim.auto_rejected event")
	}
}
