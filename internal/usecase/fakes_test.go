package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for the PostgreSQL repositories. Rows are
// copied in and out so callers only see their writes after Update.
type memStore struct {
	mu          sync.Mutex
	bookings    map[uuid.UUID]entity.Booking
	payments    map[uuid.UUID]entity.Payment
	deposits    map[uuid.UUID]entity.Deposit
	inspections map[uuid.UUID]entity.Inspection
	claims      map[uuid.UUID]entity.DamageClaim
	payouts     map[uuid.UUID]entity.HostPayout
	timeline    []entity.TimelineEvent
	cursors     map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    map[uuid.UUID]entity.Booking{},
		payments:    map[uuid.UUID]entity.Payment{},
		deposits:    map[uuid.UUID]entity.Deposit{},
		inspections: map[uuid.UUID]entity.Inspection{},
		claims:      map[uuid.UUID]entity.DamageClaim{},
		payouts:     map[uuid.UUID]entity.HostPayout{},
		cursors:     map[string]int64{},
	}
}

// repository builds a Repository over the store. Transactions run inline
// without rollback.
func (m *memStore) repository() *repository.Repository {
	repo := &repository.Repository{
		Booking:    memBookings{m},
		Payment:    memPayments{m},
		Deposit:    memDeposits{m},
		Inspection: memInspections{m},
		Claim:      memClaims{m},
		Payout:     memPayouts{m},
		Timeline:   memTimeline{m},
		Relay:      memCursors{m},
	}
	repo.Tx = memTx{repo: repo}
	return repo
}

type memTx struct{ repo *repository.Repository }

func (t memTx) WithinTx(_ context.Context, _ pgx.TxIsoLevel, fn func(*repository.Repository) error) error {
	return fn(t.repo)
}

func (m *memStore) events(bookingID uuid.UUID, eventType entity.TimelineEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.timeline {
		if e.BookingID == bookingID && e.EventType == eventType {
			n++
		}
	}
	return n
}

// ==================== BOOKINGS ====================

type memBookings struct{ m *memStore }

func (r memBookings) Create(_ context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memBookings) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBookings) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r memBookings) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		if b.GuestID == userID || b.HostID == userID {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memBookings) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, b := range r.m.bookings {
		if b.GuestID == userID || b.HostID == userID {
			n++
		}
	}
	return n, nil
}

func (r memBookings) Update(_ context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.bookings[b.ID]; !ok {
		return fmt.Errorf("booking %s not found", b.ID)
	}
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memBookings) LockResource(context.Context, string) error { return nil }

func (r memBookings) CountOverlapping(_ context.Context, q repository.OverlapQuery) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, b := range r.m.bookings {
		sameResource := false
		for _, id := range q.ListingIDs {
			if b.ListingID == id {
				sameResource = true
			}
		}
		if q.VehicleID != nil && b.VehicleID != nil && *b.VehicleID == *q.VehicleID {
			sameResource = true
		}
		if !sameResource || !b.StartAt.Before(q.EndAt) || !b.EndAt.After(q.StartAt) {
			continue
		}
		if q.ExcludeBookingID != nil && b.ID == *q.ExcludeBookingID {
			continue
		}
		switch b.Status {
		case entity.BookingStatusConfirmed, entity.BookingStatusInProgress:
			n++
		case entity.BookingStatusPendingApproval:
			if q.IncludePendingApproval && !b.ApprovalExpired && (b.ApprovalDeadline == nil || b.ApprovalDeadline.After(q.Now)) {
				n++
			}
		case entity.BookingStatusPending:
			if !q.IncludePaymentInFlight {
				continue
			}
			for _, p := range r.m.payments {
				if p.BookingID == b.ID && p.Type == entity.PaymentTypeBooking && p.Status == entity.PaymentStatusPending {
					n++
					break
				}
			}
		}
	}
	return n, nil
}

func (r memBookings) FindExpiredPendingApproval(_ context.Context, now, staleBefore time.Time, limit int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		claimable := !b.ApprovalExpired || !b.UpdatedAt.After(staleBefore)
		if b.Status == entity.BookingStatusPendingApproval && claimable &&
			b.ApprovalDeadline != nil && !b.ApprovalDeadline.After(now) && len(out) < limit {
			b := b
			out = append(out, &b)
		}
	}
	return out, nil
}

func (r memBookings) MarkApprovalExpired(_ context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok || b.Status != entity.BookingStatusPendingApproval {
		return false, nil
	}
	if b.ApprovalExpired && b.UpdatedAt.After(staleBefore) {
		return false, nil
	}
	b.ApprovalExpired = true
	b.UpdatedAt = now
	r.m.bookings[id] = b
	return true, nil
}

// ==================== PAYMENTS ====================

type memPayments struct{ m *memStore }

func (r memPayments) Create(_ context.Context, p *entity.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.ID] = *p
	return nil
}

func (r memPayments) find(match func(entity.Payment) bool) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *entity.Payment
	for _, p := range r.m.payments {
		if match(p) && (found == nil || p.CreatedAt.After(found.CreatedAt)) {
			p := p
			found = &p
		}
	}
	return found, nil
}

func (r memPayments) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool { return p.ID == id })
}

func (r memPayments) FindByGatewayRef(_ context.Context, ref string) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool { return p.GatewayRef == ref })
}

func (r memPayments) FindByGatewayRefForUpdate(ctx context.Context, ref string) (*entity.Payment, error) {
	return r.FindByGatewayRef(ctx, ref)
}

func (r memPayments) FindByIdempotencyKey(_ context.Context, key string) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool { return p.IdempotencyKey == key })
}

func (r memPayments) FindPendingByBookingAndType(_ context.Context, bookingID uuid.UUID, t entity.PaymentType) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool {
		return p.BookingID == bookingID && p.Type == t && p.Status == entity.PaymentStatusPending
	})
}

func (r memPayments) FindLatestByBookingAndType(_ context.Context, bookingID uuid.UUID, t entity.PaymentType) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool { return p.BookingID == bookingID && p.Type == t })
}

func (r memPayments) Update(_ context.Context, p *entity.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.ID] = *p
	return nil
}

// ==================== DEPOSITS ====================

type memDeposits struct{ m *memStore }

func (r memDeposits) Create(_ context.Context, d *entity.Deposit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.deposits[d.ID] = *d
	return nil
}

func (r memDeposits) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.Deposit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.deposits {
		if d.BookingID == bookingID {
			return &d, nil
		}
	}
	return nil, nil
}

func (r memDeposits) FindByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*entity.Deposit, error) {
	return r.FindByBookingID(ctx, bookingID)
}

func (r memDeposits) Update(_ context.Context, d *entity.Deposit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.deposits[d.ID] = *d
	return nil
}

// ==================== INSPECTIONS ====================

type memInspections struct{ m *memStore }

func (r memInspections) Create(_ context.Context, i *entity.Inspection) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.inspections[i.ID] = *i
	return nil
}

func (r memInspections) FindByID(_ context.Context, id uuid.UUID) (*entity.Inspection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i, ok := r.m.inspections[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r memInspections) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Inspection, error) {
	return r.FindByID(ctx, id)
}

func (r memInspections) FindByBookingAndType(_ context.Context, bookingID uuid.UUID, t entity.InspectionType) (*entity.Inspection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, i := range r.m.inspections {
		if i.BookingID == bookingID && i.Type == t {
			return &i, nil
		}
	}
	return nil, nil
}

func (r memInspections) Update(_ context.Context, i *entity.Inspection) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.inspections[i.ID] = *i
	return nil
}

func (r memInspections) FindDueForAutoValidation(_ context.Context, now time.Time, limit int) ([]*entity.Inspection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Inspection
	for _, i := range r.m.inspections {
		if i.Status == entity.InspectionStatusSubmitted && i.SubmittedAt != nil && !now.Before(i.SubmittedAt.Add(i.AutoValidateAfter())) {
			i := i
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SubmittedAt.Before(*out[b].SubmittedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memInspections) FindValidatedReturnsBefore(_ context.Context, cutoff time.Time, limit int) ([]*entity.Inspection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Inspection
	for _, i := range r.m.inspections {
		if i.Type != entity.InspectionTypeRetour || i.Status != entity.InspectionStatusValidated ||
			i.ValidatedAt == nil || i.ValidatedAt.After(cutoff) {
			continue
		}
		held, disputed := false, false
		for _, d := range r.m.deposits {
			if d.BookingID == i.BookingID && d.Status == entity.DepositStatusPreauthorized {
				held = true
			}
		}
		for _, c := range r.m.claims {
			if c.BookingID == i.BookingID && c.Status != entity.ClaimStatusClosed {
				disputed = true
			}
		}
		if held && !disputed {
			i := i
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ValidatedAt.Before(*out[b].ValidatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== CLAIMS ====================

type memClaims struct{ m *memStore }

func (r memClaims) Create(_ context.Context, c *entity.DamageClaim) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.claims[c.ID] = *c
	return nil
}

func (r memClaims) FindByID(_ context.Context, id uuid.UUID) (*entity.DamageClaim, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memClaims) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.DamageClaim, error) {
	return r.FindByID(ctx, id)
}

func (r memClaims) FindNotClosedByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.DamageClaim, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.claims {
		if c.BookingID == bookingID && c.Status != entity.ClaimStatusClosed {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memClaims) Update(_ context.Context, c *entity.DamageClaim) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.claims[c.ID] = *c
	return nil
}

func (r memClaims) CountRejectedByHost(_ context.Context, hostID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, c := range r.m.claims {
		if c.HostID == hostID && c.Status == entity.ClaimStatusAdminRejected {
			n++
		}
	}
	return n, nil
}

func (r memClaims) CountUpheldAgainstRenter(_ context.Context, renterID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, c := range r.m.claims {
		if c.RenterID == renterID && c.DecidedAmount != nil && *c.DecidedAmount > 0 {
			n++
		}
	}
	return n, nil
}

func (r memClaims) FindAwaitingRenterSubmittedBefore(_ context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error) {
	return r.findMany(limit, func(c entity.DamageClaim) bool {
		return c.Status == entity.ClaimStatusAwaitingRenterResponse && c.SubmittedAt != nil && !c.SubmittedAt.After(cutoff)
	})
}

func (r memClaims) FindAwaitingAdminRespondedBefore(_ context.Context, cutoff time.Time, limit int) ([]*entity.DamageClaim, error) {
	return r.findMany(limit, func(c entity.DamageClaim) bool {
		return c.Status == entity.ClaimStatusAwaitingAdminReview && c.RenterRespondedAt != nil && !c.RenterRespondedAt.After(cutoff)
	})
}

func (r memClaims) findMany(limit int, match func(entity.DamageClaim) bool) ([]*entity.DamageClaim, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.DamageClaim
	for _, c := range r.m.claims {
		if match(c) && len(out) < limit {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

// ==================== PAYOUTS ====================

type memPayouts struct{ m *memStore }

func (r memPayouts) Create(_ context.Context, p *entity.HostPayout) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payouts[p.ID] = *p
	return nil
}

func (r memPayouts) FindByID(_ context.Context, id uuid.UUID) (*entity.HostPayout, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPayouts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.HostPayout, error) {
	return r.FindByID(ctx, id)
}

func (r memPayouts) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*entity.HostPayout, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payouts {
		if p.BookingID == bookingID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memPayouts) Update(_ context.Context, p *entity.HostPayout) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payouts[p.ID] = *p
	return nil
}

func (r memPayouts) FindDue(_ context.Context, now time.Time, limit int) ([]*entity.HostPayout, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.HostPayout
	for _, p := range r.m.payouts {
		b := r.m.bookings[p.BookingID]
		live := b.Status == entity.BookingStatusConfirmed || b.Status == entity.BookingStatusInProgress || b.Status == entity.BookingStatusCompleted
		if p.Status == entity.PayoutStatusScheduled && !p.ScheduledAt.After(now) && live && len(out) < limit {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r memPayouts) ClaimForProcessing(_ context.Context, id uuid.UUID, now time.Time, retryFailed bool) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payouts[id]
	if !ok {
		return false, nil
	}
	if p.Status != entity.PayoutStatusScheduled && !(retryFailed && p.Status == entity.PayoutStatusFailed) {
		return false, nil
	}
	p.Status = entity.PayoutStatusProcessing
	p.ProcessedAt = &now
	r.m.payouts[id] = p
	return true, nil
}

func (r memPayouts) CancelUnpaidByBookingID(_ context.Context, bookingID uuid.UUID, _ time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, p := range r.m.payouts {
		if p.BookingID == bookingID && (p.Status == entity.PayoutStatusScheduled || p.Status == entity.PayoutStatusFailed) {
			p.Status = entity.PayoutStatusCancelled
			r.m.payouts[id] = p
			n++
		}
	}
	return n, nil
}

// ==================== TIMELINE ====================

type memTimeline struct{ m *memStore }

func (r memTimeline) Append(_ context.Context, e *entity.TimelineEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e.Seq = int64(len(r.m.timeline) + 1)
	r.m.timeline = append(r.m.timeline, *e)
	return nil
}

func (r memTimeline) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.TimelineEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.TimelineEvent
	for _, e := range r.m.timeline {
		if e.BookingID == bookingID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r memTimeline) FindAfterSeq(_ context.Context, seq int64, limit int) ([]*entity.TimelineEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.TimelineEvent
	for _, e := range r.m.timeline {
		if e.Seq > seq && len(out) < limit {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

type memCursors struct{ m *memStore }

func (r memCursors) Get(_ context.Context, name string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.cursors[name], nil
}

func (r memCursors) Set(_ context.Context, name string, seq int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if seq > r.m.cursors[name] {
		r.m.cursors[name] = seq
	}
	return nil
}

// ==================== PORTS ====================

var errGatewayDown = errors.New("gateway unavailable")

type fakeGateway struct {
	mu         sync.Mutex
	seq        int
	authorized []gateway.AuthorizeRequest
	holds      map[string]float64
	captures   map[string]int
	cancels    map[string]int
	refunds    map[string]float64
	transfers  []gateway.TransferRequest
	reversed   []string
	failNext   bool
	event      *gateway.WebhookEvent
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		holds:    map[string]float64{},
		captures: map[string]int{},
		cancels:  map[string]int{},
		refunds:  map[string]float64{},
	}
}

func (g *fakeGateway) fail() error {
	if g.failNext {
		g.failNext = false
		return errGatewayDown
	}
	return nil
}

func (g *fakeGateway) Authorize(_ context.Context, req gateway.AuthorizeRequest) (*gateway.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return nil, err
	}
	g.seq++
	g.authorized = append(g.authorized, req)
	ref := fmt.Sprintf("chrg_%d", g.seq)
	g.holds[ref] = req.Amount
	return &gateway.Authorization{IntentRef: ref, ClientSecret: ref + "_secret", Status: "pending"}, nil
}

func (g *fakeGateway) Capture(_ context.Context, ref string, amount *float64) (*gateway.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return nil, err
	}
	captured := g.holds[ref]
	if amount != nil {
		captured = *amount
	}
	g.captures[ref]++
	return &gateway.CaptureResult{IntentRef: ref, CapturedAmount: captured}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return err
	}
	g.cancels[ref]++
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, ref string, amount *float64, _ map[string]any) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return nil, err
	}
	refunded := 0.0
	if amount != nil {
		refunded = *amount
	}
	g.refunds[ref] += refunded
	return &gateway.RefundResult{RefundRef: "rfnd_" + ref, Amount: refunded}, nil
}

func (g *fakeGateway) Transfer(_ context.Context, req gateway.TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return "", err
	}
	g.transfers = append(g.transfers, req)
	return fmt.Sprintf("trsf_%d", len(g.transfers)), nil
}

func (g *fakeGateway) ReverseTransfer(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return err
	}
	g.reversed = append(g.reversed, ref)
	return nil
}

func (g *fakeGateway) VerifyWebhookSignature(_ context.Context, payload []byte, signature string) (*gateway.WebhookEvent, error) {
	if err := gateway.VerifySignature(payload, signature, testWebhookSecret); err != nil {
		return nil, err
	}
	return g.event, nil
}

const testWebhookSecret = "whsec_test"

type fakeCatalog struct {
	listings   map[uuid.UUID]*entity.Listing
	closed     map[string]bool
	blocked    map[uuid.UUID]bool
	accounts   map[uuid.UUID]string
	siblingsOf map[uuid.UUID][]uuid.UUID
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		listings:   map[uuid.UUID]*entity.Listing{},
		closed:     map[string]bool{},
		blocked:    map[uuid.UUID]bool{},
		accounts:   map[uuid.UUID]string{},
		siblingsOf: map[uuid.UUID][]uuid.UUID{},
	}
}

func (c *fakeCatalog) IsMarketOpenForCountry(_ context.Context, code string) (bool, error) {
	return !c.closed[code], nil
}

func (c *fakeCatalog) GetListingPricingRules(_ context.Context, id uuid.UUID) (*entity.Listing, error) {
	l, ok := c.listings[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (c *fakeCatalog) IsDateRangeAvailable(_ context.Context, id uuid.UUID, _, _ time.Time) (bool, error) {
	return !c.blocked[id], nil
}

func (c *fakeCatalog) GetSiblingListingIDs(_ context.Context, id uuid.UUID, _ *uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID{id}, c.siblingsOf[id]...), nil
}

func (c *fakeCatalog) GetHostPayoutAccount(_ context.Context, hostID uuid.UUID) (string, error) {
	return c.accounts[hostID], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) SendEmail(context.Context, notify.Email) {}

func (n *fakeNotifier) count(t notify.NotificationType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, msg := range n.sent {
		if msg.Type == t {
			c++
		}
	}
	return c
}

// ==================== FIXTURE ====================

type fixture struct {
	store    *memStore
	gateway  *fakeGateway
	catalog  *fakeCatalog
	notifier *fakeNotifier
	clock    time.Time
	svc      *Service

	hostID  uuid.UUID
	guestID uuid.UUID
	adminID uuid.UUID
	listing *entity.Listing
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		gateway:  newFakeGateway(),
		catalog:  newFakeCatalog(),
		notifier: &fakeNotifier{},
		clock:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		hostID:   uuid.New(),
		guestID:  uuid.New(),
		adminID:  uuid.New(),
	}

	f.listing = &entity.Listing{
		ID:                    uuid.New(),
		HostID:                f.hostID,
		Status:                entity.ListingStatusActive,
		Category:              entity.ListingCategoryCarRental,
		CountryCode:           "FR",
		Currency:              "EUR",
		PricePerDay:           100,
		Discount3Days:         10,
		Discount7Days:         20,
		CancellationPolicy:    entity.CancellationPolicyModerate,
		MinBookingNoticeHours: 24,
		CautionAmount:         500,
	}
	f.catalog.listings[f.listing.ID] = f.listing
	f.catalog.accounts[f.hostID] = "recp_host"

	c := &core{
		repo:     f.store.repository(),
		gateway:  f.gateway,
		catalog:  f.catalog,
		notifier: f.notifier,
		now:      func() time.Time { return f.clock },
	}
	f.svc = newService(c, zap.NewNop())
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// seedBooking stores a booking in the given status, bypassing creation.
func (f *fixture) seedBooking(status entity.BookingStatus, startIn, length time.Duration) *entity.Booking {
	b := &entity.Booking{
		GuestID:            f.guestID,
		HostID:             f.hostID,
		ListingID:          f.listing.ID,
		StartAt:            f.clock.Add(startIn),
		EndAt:              f.clock.Add(startIn + length),
		TotalAmount:        300,
		CautionAmount:      f.listing.CautionAmount,
		Currency:           "EUR",
		Status:             status,
		CarRental:          true,
		ManualApproval:     f.listing.ManualApprovalRequired,
		CancellationPolicy: f.listing.CancellationPolicy,
	}
	b.ID = uuid.New()
	b.CreatedAt = f.clock
	b.UpdatedAt = f.clock
	f.store.bookings[b.ID] = *b
	return b
}

// seedPayment stores a payment for bookingID.
func (f *fixture) seedPayment(bookingID uuid.UUID, t entity.PaymentType, status entity.PaymentStatus, amount, captured float64, manual bool) *entity.Payment {
	p := &entity.Payment{
		BookingID:      bookingID,
		Type:           t,
		Amount:         amount,
		Currency:       "EUR",
		Status:         status,
		ManualCapture:  manual,
		CapturedAmount: captured,
		GatewayRef:     "chrg_seed_" + uuid.NewString()[:8],
		IdempotencyKey: uuid.NewString(),
	}
	p.ID = uuid.New()
	p.CreatedAt = f.clock
	p.UpdatedAt = f.clock
	f.store.payments[p.ID] = *p
	f.gateway.holds[p.GatewayRef] = amount
	return p
}

// seedDeposit stores an authorized caution hold for bookingID.
func (f *fixture) seedDeposit(bookingID uuid.UUID, hold float64) *entity.Deposit {
	p := f.seedPayment(bookingID, entity.PaymentTypeCaution, entity.PaymentStatusSucceeded, hold, 0, true)
	d := &entity.Deposit{
		BookingID:  bookingID,
		PaymentID:  p.ID,
		HoldAmount: hold,
		Currency:   "EUR",
		Status:     entity.DepositStatusPreauthorized,
	}
	d.ID = uuid.New()
	d.CreatedAt = f.clock
	d.UpdatedAt = f.clock
	f.store.deposits[d.ID] = *d
	return d
}

func (f *fixture) booking(id uuid.UUID) entity.Booking {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.bookings[id]
}

func (f *fixture) deposit(bookingID uuid.UUID) entity.Deposit {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, d := range f.store.deposits {
		if d.BookingID == bookingID {
			return d
		}
	}
	return entity.Deposit{}
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

// seedInspection stores a complete car inspection of b created by the host.
func (f *fixture) seedInspection(b *entity.Booking, t entity.InspectionType, status entity.InspectionStatus) *entity.Inspection {
	i := &entity.Inspection{
		BookingID:        b.ID,
		Type:             t,
		Mode:             entity.InspectionModeStandard,
		CreatorRole:      entity.InspectionRoleHost,
		CreatorID:        b.HostID,
		Items:            completeItems(),
		Mileage:          intPtr(42000),
		EnergyLevel:      intPtr(80),
		DocumentsPresent: boolPtr(true),
		Accessories:      map[string]bool{"spare_wheel": true},
		Status:           status,
	}
	i.ID = uuid.New()
	i.CreatedAt = f.clock
	i.UpdatedAt = f.clock
	if status != entity.InspectionStatusDraft {
		i.SubmittedAt = timePtr(f.clock)
	}
	if status == entity.InspectionStatusValidated {
		i.ValidatedAt = timePtr(f.clock)
	}
	f.store.inspections[i.ID] = *i
	return i
}

func completeItems() []entity.InspectionItem {
	lat, lng := 48.85, 2.35
	items := make([]entity.InspectionItem, 0, len(entity.CarChecklistCodes))
	for _, code := range entity.CarChecklistCodes {
		items = append(items, entity.InspectionItem{
			Code:        code,
			Condition:   entity.ConditionOK,
			Cleanliness: entity.CleanlinessClean,
			PhotoURL:    "https://cdn.example.com/" + code + ".jpg",
			Latitude:    &lat,
			Longitude:   &lng,
		})
	}
	return items
}

func mustParse(t testing.TB, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return id
}
