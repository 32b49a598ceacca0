package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/dto/request"
)

func fullUpdateRequest(mileage int) *request.UpdateInspectionRequest {
	items := make([]request.InspectionItemRequest, 0, len(entity.CarChecklistCodes))
	for _, item := range completeItems() {
		items = append(items, request.InspectionItemRequest{
			Code:        item.Code,
			Condition:   string(item.Condition),
			Cleanliness: string(item.Cleanliness),
			PhotoURL:    item.PhotoURL,
			Latitude:    item.Latitude,
			Longitude:   item.Longitude,
		})
	}
	energy := 75
	docs := true
	return &request.UpdateInspectionRequest{
		Items:            items,
		Mileage:          &mileage,
		EnergyLevel:      &energy,
		DocumentsPresent: &docs,
		Accessories:      map[string]bool{"spare_wheel": true, "warning_triangle": true},
	}
}

func TestCheckSubmittable(t *testing.T) {
	i := &entity.Inspection{
		Items:            completeItems(),
		Mileage:          intPtr(1000),
		EnergyLevel:      intPtr(50),
		DocumentsPresent: boolPtr(true),
		Accessories:      map[string]bool{"jack": true},
	}
	if err := CheckSubmittable(i); err != nil {
		t.Fatalf("complete inspection rejected: %v", err)
	}

	i.Items[3].PhotoURL = ""
	i.Items[5].Condition = entity.ConditionMinorDamage
	err := CheckSubmittable(i)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, want := range []string{
		"item ROOF: photo is required",
		"item FRONT_LEFT_DOOR: condition note is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	i.Items = i.Items[:15]
	i.EnergyLevel = intPtr(120)
	err = CheckSubmittable(i)
	if !strings.Contains(err.Error(), "missing checklist items: INTERIOR, TAILLIGHTS") {
		t.Errorf("error %q does not list missing items", err)
	}
	if !strings.Contains(err.Error(), "energy level must be between 0 and 100") {
		t.Errorf("error %q does not mention the energy level", err)
	}
}

func TestComputeContentHashIgnoresItemOrder(t *testing.T) {
	a := &entity.Inspection{Items: completeItems(), Mileage: intPtr(1200), EnergyLevel: intPtr(60)}
	b := &entity.Inspection{Items: completeItems(), Mileage: intPtr(1200), EnergyLevel: intPtr(60)}
	for l, r := 0, len(b.Items)-1; l < r; l, r = l+1, r-1 {
		b.Items[l], b.Items[r] = b.Items[r], b.Items[l]
	}

	if ComputeContentHash(a) != ComputeContentHash(b) {
		t.Fatal("hash depends on item order")
	}
	b.Mileage = intPtr(1201)
	if ComputeContentHash(a) == ComputeContentHash(b) {
		t.Fatal("hash ignores mileage")
	}
	if len(ComputeContentHash(a)) != 64 {
		t.Fatal("expected a hex SHA-256 digest")
	}
}

func TestScoreInspection(t *testing.T) {
	reference := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	i := &entity.Inspection{
		Items:            completeItems(),
		Mileage:          intPtr(1000),
		EnergyLevel:      intPtr(50),
		DocumentsPresent: boolPtr(true),
		Accessories:      map[string]bool{"jack": true},
		SubmittedAt:      timePtr(reference.Add(time.Hour)),
	}

	s := ScoreInspection(i, reference, 0, 0)
	if s.Overall != 100 || s.Completeness != 100 || s.Timeliness != 100 {
		t.Fatalf("unexpected perfect score %+v", s)
	}

	s = ScoreInspection(i, reference, 2, 1)
	if s.HostReliability != 70 || s.RenterReliability != 80 {
		t.Fatalf("unexpected reliability %+v", s)
	}

	i.SubmittedAt = timePtr(reference.Add(13 * time.Hour))
	if got := ScoreInspection(i, reference, 0, 0).Timeliness; got != 50 {
		t.Fatalf("timeliness = %d, want 50", got)
	}
	i.SubmittedAt = timePtr(reference.Add(30 * time.Hour))
	if got := ScoreInspection(i, reference, 0, 0).Timeliness; got != 0 {
		t.Fatalf("timeliness = %d, want 0", got)
	}
}

func TestInspectionWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.seedBooking(entity.BookingStatusConfirmed, time.Hour, 72*time.Hour)

	if _, err := f.svc.Inspection.Create(ctx, f.hostID, &request.CreateInspectionRequest{
		BookingID: b.ID.String(), Type: "DEPART", Mode: "KEY_BOX",
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("host KEY_BOX: expected forbidden, got %v", err)
	}
	if _, err := f.svc.Inspection.Create(ctx, f.hostID, &request.CreateInspectionRequest{
		BookingID: b.ID.String(), Type: "RETOUR", Mode: "STANDARD",
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("early RETOUR: expected conflict, got %v", err)
	}

	created, err := f.svc.Inspection.Create(ctx, f.hostID, &request.CreateInspectionRequest{
		BookingID: b.ID.String(), Type: "DEPART", Mode: "STANDARD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Inspection.Submit(ctx, f.hostID, created.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty submit: expected validation error, got %v", err)
	}
	if _, err := f.svc.Inspection.Update(ctx, f.guestID, created.ID, fullUpdateRequest(42000)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("guest edit: expected forbidden, got %v", err)
	}
	if _, err := f.svc.Inspection.Update(ctx, f.hostID, created.ID, fullUpdateRequest(42000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	submitted, err := f.svc.Inspection.Submit(ctx, f.hostID, created.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != entity.InspectionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", submitted.Status)
	}
	if _, err := f.svc.Inspection.Update(ctx, f.hostID, created.ID, fullUpdateRequest(42001)); !errors.Is(err, ErrConflict) {
		t.Fatalf("edit after submit: expected conflict, got %v", err)
	}

	if _, err := f.svc.Inspection.Validate(ctx, f.hostID, created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self validation: expected forbidden, got %v", err)
	}
	validated, err := f.svc.Inspection.Validate(ctx, f.guestID, created.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Status != entity.InspectionStatusValidated || validated.ContentHash == nil || validated.Score == nil {
		t.Fatalf("unexpected inspection %+v", validated)
	}

	resp, err := f.svc.Booking.UpdateStatus(ctx, f.hostID, b.ID.String(), &request.UpdateBookingStatusRequest{Status: "IN_PROGRESS"})
	if err != nil {
		t.Fatalf("start rental: %v", err)
	}
	if resp.Booking.Status != entity.BookingStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", resp.Booking.Status)
	}
}

func TestInspectionContest(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.seedBooking(entity.BookingStatusConfirmed, time.Hour, 72*time.Hour)
	i := f.seedInspection(b, entity.InspectionTypeDepart, entity.InspectionStatusSubmitted)
	req := &request.ContestInspectionRequest{Reason: "the scratch on the hood is missing"}

	if _, err := f.svc.Inspection.Contest(ctx, f.hostID, i.ID.String(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("creator contest: expected forbidden, got %v", err)
	}
	contested, err := f.svc.Inspection.Contest(ctx, f.guestID, i.ID.String(), req)
	if err != nil {
		t.Fatalf("contest: %v", err)
	}
	if contested.Status != entity.InspectionStatusContested {
		t.Fatalf("status = %s, want CONTESTED", contested.Status)
	}
	if _, err := f.svc.Inspection.Validate(ctx, f.guestID, i.ID.String()); !errors.Is(err, ErrConflict) {
		t.Fatalf("validate contested: expected conflict, got %v", err)
	}
}

func TestAutoValidateDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.seedBooking(entity.BookingStatusInProgress, -72*time.Hour, 72*time.Hour)
	depart := f.seedInspection(b, entity.InspectionTypeDepart, entity.InspectionStatusSubmitted)
	retour := f.seedInspection(b, entity.InspectionTypeRetour, entity.InspectionStatusSubmitted)
	retour.Mileage = intPtr(41000)
	f.store.inspections[retour.ID] = *retour

	f.advance(31 * time.Minute)
	res, err := f.svc.Inspection.AutoValidateDue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("only the departure is due, got %+v", res)
	}
	got := f.store.inspections[depart.ID]
	if got.Status != entity.InspectionStatusValidated || !got.AutoValidated {
		t.Fatalf("unexpected departure %+v", got)
	}
	if f.store.events(b.ID, entity.EventInspectionAutoValidated) != 1 {
		t.Fatal("expected an inspection.auto_validated event")
	}

	f.advance(24 * time.Hour)
	if res, _ := f.svc.Inspection.AutoValidateDue(ctx, 10); res.Processed != 1 {
		t.Fatalf("return should be due after a day, got %+v", res)
	}
	got = f.store.inspections[retour.ID]
	if _, flagged := got.Metadata["mileageInconsistency"]; !flagged {
		t.Fatalf("expected a mileage inconsistency flag, metadata %+v", got.Metadata)
	}

	if res, _ := f.svc.Inspection.AutoValidateDue(ctx, 10); res.Processed != 0 {
		t.Fatalf("second sweep validated again: %+v", res)
	}
}

func TestAutoValidateDueReachesShortTimersBehindLongOnes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// Returns submitted first wait 24h; they must not fill the page.
	var returns []*entity.Inspection
	for n := 0; n < 3; n++ {
		b := f.seedBooking(entity.BookingStatusInProgress, -72*time.Hour, 96*time.Hour)
		returns = append(returns, f.seedInspection(b, entity.InspectionTypeRetour, entity.InspectionStatusSubmitted))
		f.advance(time.Hour)
	}
	b := f.seedBooking(entity.BookingStatusInProgress, -72*time.Hour, 96*time.Hour)
	depart := f.seedInspection(b, entity.InspectionTypeDepart, entity.InspectionStatusSubmitted)

	f.advance(31 * time.Minute)
	res, err := f.svc.Inspection.AutoValidateDue(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("expected the departure to be validated, got %+v", res)
	}
	if got := f.store.inspections[depart.ID]; got.Status != entity.InspectionStatusValidated {
		t.Fatalf("departure = %s, want VALIDATED", got.Status)
	}
	for _, r := range returns {
		if got := f.store.inspections[r.ID]; got.Status != entity.InspectionStatusSubmitted {
			t.Fatalf("return %s validated before its timer", r.ID)
		}
	}
}
