package usecase

import (
	"context"
	"fmt"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/dto/response"
	"vehicle-rental/internal/notify"
	"vehicle-rental/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingService interface {
	// Public endpoints (butuh auth)
	Create(ctx context.Context, guestID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetByID(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.BookingResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetTimeline(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) ([]response.TimelineEventResponse, error)

	// Lifecycle
	UpdateStatus(ctx context.Context, actorID uuid.UUID, bookingID string, req *request.UpdateBookingStatusRequest) (*response.CancellationResponse, error)
	Approve(ctx context.Context, hostID uuid.UUID, bookingID string) (*response.BookingResponse, error)
	Reject(ctx context.Context, hostID uuid.UUID, bookingID string, req *request.RejectBookingRequest) (*response.BookingResponse, error)

	// Scheduler
	ExpirePendingApprovals(ctx context.Context, limit int) (SweepResult, error)
}

type bookingService struct {
	*core
	payouts  *payoutService
	deposits *depositService
	log      *zap.Logger
}

func newBookingService(c *core, payouts *payoutService, deposits *depositService, log *zap.Logger) *bookingService {
	return &bookingService{
		core:     c,
		payouts:  payouts,
		deposits: deposits,
		log:      log.With(zap.String("service", "booking")),
	}
}

const (
	refundStatusNone    = "none"
	refundStatusVoided  = "voided"
	refundStatusIssued  = "refunded"
	refundStatusFailed  = "failed"
	refundStatusPending = "awaiting_payment"
)

func (s *bookingService) Create(ctx context.Context, guestID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	listingID, err := parseID("listing", req.ListingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	startAt, endAt := req.StartAt.UTC(), req.EndAt.UTC()
	if !startAt.Before(endAt) {
		return nil, validationf("start_at must be before end_at")
	}
	if startAt.Before(now) {
		return nil, validationf("cannot book a rental that starts in the past")
	}

	// Validate listing
	listing, err := s.catalog.GetListingPricingRules(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, notFoundf("listing %s not found", req.ListingID)
	}
	if listing.Status != entity.ListingStatusActive {
		return nil, conflictf("listing %s is not active", req.ListingID)
	}
	if listing.HostID == guestID {
		return nil, validationf("hosts cannot book their own listing")
	}

	open, err := s.catalog.IsMarketOpenForCountry(ctx, listing.CountryCode)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, conflictf("market %s is not open for bookings", listing.CountryCode)
	}

	available, err := s.catalog.IsDateRangeAvailable(ctx, listingID, startAt, endAt)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, conflictf("listing is not available for the selected dates")
	}

	// Price
	price, options, err := CalculatePrice(listing, startAt, endAt, toSelectedOptions(req.Options))
	if err != nil {
		return nil, err
	}

	listingIDs, err := s.catalog.GetSiblingListingIDs(ctx, listingID, listing.VehicleID)
	if err != nil {
		return nil, err
	}

	booking := &entity.Booking{
		GuestID:            guestID,
		HostID:             listing.HostID,
		ListingID:          listing.ID,
		VehicleID:          listing.VehicleID,
		StartAt:            startAt,
		EndAt:              endAt,
		TotalAmount:        price.Total,
		CautionAmount:      listing.CautionAmount,
		Currency:           listing.Currency,
		Status:             entity.BookingStatusPending,
		CarRental:          listing.IsCarRental(),
		ManualApproval:     listing.ManualApprovalRequired,
		CancellationPolicy: listing.CancellationPolicy,
		Options:            options,
		Price:              price,
	}
	booking.ID = uuid.New()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	err = s.repo.Tx.WithinTx(ctx, pgx.Serializable, func(repo *repository.Repository) error {
		if err := repo.Booking.LockResource(ctx, booking.ResourceKey()); err != nil {
			return err
		}

		overlapping, err := repo.Booking.CountOverlapping(ctx, repository.OverlapQuery{
			ListingIDs:             listingIDs,
			VehicleID:              booking.VehicleID,
			StartAt:                startAt,
			EndAt:                  endAt,
			IncludePendingApproval: booking.ManualApproval,
			IncludePaymentInFlight: true,
			Now:                    now,
		})
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return conflictf("vehicle is already booked for the selected dates")
		}

		if err := repo.Booking.Create(ctx, booking); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventBookingCreated,
			actorID:   actor(guestID),
			payload: map[string]any{
				"listing_id": listing.ID.String(),
				"start_at":   startAt,
				"end_at":     endAt,
				"total":      price.Total,
				"currency":   booking.Currency,
			},
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("guest_id", guestID.String()),
		zap.String("listing_id", listing.ID.String()),
		zap.Float64("total", booking.TotalAmount),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func toSelectedOptions(req request.BookingOptionsRequest) entity.SelectedOptions {
	var opts entity.SelectedOptions
	if req.Insurance != nil {
		opts.Insurance = &entity.InsuranceOption{PolicyID: req.Insurance.PolicyID}
	}
	if req.Delivery != nil {
		opts.Delivery = &entity.DeliveryOption{Address: req.Delivery.Address, DistanceKm: req.Delivery.DistanceKm}
	}
	if req.SecondDriver != nil {
		opts.SecondDriver = &entity.SecondDriverOption{DriverName: req.SecondDriver.DriverName}
	}
	return opts
}

func (s *bookingService) GetByID(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.findVisible(ctx, actorID, isAdmin, bookingID)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListForUser(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.repo.Booking.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, response.BookingToResponse(b))
	}

	return response.NewPaginatedResponse(items, req.Page, req.Limit(), total), nil
}

func (s *bookingService) GetTimeline(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) ([]response.TimelineEventResponse, error) {
	booking, err := s.findVisible(ctx, actorID, isAdmin, bookingID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.Timeline.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	out := make([]response.TimelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, response.TimelineEventToResponse(e))
	}
	return out, nil
}

func (s *bookingService) findVisible(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*entity.Booking, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, notFoundf("booking %s not found", bookingID)
	}
	if !isAdmin && !booking.IsParty(actorID) {
		return nil, forbiddenf("you are not a party to this booking")
	}
	return booking, nil
}

// ==================== LIFECYCLE ====================

func (s *bookingService) UpdateStatus(ctx context.Context, actorID uuid.UUID, bookingID string, req *request.UpdateBookingStatusRequest) (*response.CancellationResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}
	next := entity.BookingStatus(req.Status)

	var (
		booking       *entity.Booking
		refundPercent float64
	)
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		booking, err = repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking == nil {
			return notFoundf("booking %s not found", bookingID)
		}
		if !booking.IsParty(actorID) {
			return forbiddenf("only the guest or the host can change this booking")
		}
		if !booking.Status.CanTransitionTo(next) {
			return conflictf("cannot move booking from %s to %s", booking.Status, next)
		}
		if err := s.checkInspectionGate(ctx, repo, booking, next); err != nil {
			return err
		}

		now := s.now()
		from := booking.Status
		booking.Status = next
		booking.UpdatedAt = now

		payload := map[string]any{"from": string(from), "to": string(next)}
		if next == entity.BookingStatusCancelled {
			booking.CancelledAt = timePtr(now)
			booking.CancelledBy = actor(actorID)
			booking.CancelReason = req.Reason
			refundPercent = RefundPercent(booking.CancellationPolicy, booking.StartAt.Sub(now).Hours())
			payload["refund_percent"] = refundPercent
			if req.Reason != nil {
				payload["reason"] = *req.Reason
			}

			if err := s.payouts.cancelUnpaid(ctx, repo, booking.ID); err != nil {
				return err
			}
		}

		if err := repo.Booking.Update(ctx, booking); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventBookingStatusChanged,
			actorID:   actor(actorID),
			payload:   payload,
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Booking status updated",
		zap.String("booking_id", bookingID),
		zap.String("status", string(next)),
		zap.String("actor_id", actorID.String()),
	)

	resp := &response.CancellationResponse{Booking: response.BookingToResponse(booking)}
	if next != entity.BookingStatusCancelled {
		return resp, nil
	}

	resp.RefundPercent = refundPercent
	resp.RefundAmount, resp.RefundStatus = s.settleCancellation(ctx, booking, refundPercent)
	s.releaseDeposit(ctx, booking.ID, actor(actorID), "booking cancelled")

	counterparty := booking.HostID
	if actorID == booking.HostID {
		counterparty = booking.GuestID
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID: counterparty,
		Type:   notify.TypeBookingCancelled,
		Title:  "Booking cancelled",
		Body:   "A booking you are part of has been cancelled.",
		Data:   map[string]any{"booking_id": booking.ID.String()},
	})

	return resp, nil
}

// checkInspectionGate enforces that a car rental only starts after a
// validated departure inspection and only completes after a validated return.
func (s *bookingService) checkInspectionGate(ctx context.Context, repo *repository.Repository, booking *entity.Booking, next entity.BookingStatus) error {
	if !booking.CarRental {
		return nil
	}

	var required entity.InspectionType
	switch next {
	case entity.BookingStatusInProgress:
		required = entity.InspectionTypeDepart
	case entity.BookingStatusCompleted:
		required = entity.InspectionTypeRetour
	default:
		return nil
	}

	inspection, err := repo.Inspection.FindByBookingAndType(ctx, booking.ID, required)
	if err != nil {
		return err
	}
	if inspection == nil || inspection.Status != entity.InspectionStatusValidated {
		return conflictf("a VALIDATED %s inspection is required before moving to %s", required, next)
	}
	return nil
}

// settleCancellation returns the booking money according to the policy. It
// is best-effort: failures are logged and recorded on the timeline, the
// cancellation itself stands.
func (s *bookingService) settleCancellation(ctx context.Context, booking *entity.Booking, refundPercent float64) (float64, string) {
	payment, err := s.repo.Payment.FindLatestByBookingAndType(ctx, booking.ID, entity.PaymentTypeBooking)
	if err != nil {
		s.log.Error("Failed to load booking payment for refund",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return 0, refundStatusFailed
	}
	if payment == nil {
		return 0, refundStatusNone
	}

	switch {
	case payment.Status == entity.PaymentStatusPending:
		// The confirmation webhook returns the money when it arrives.
		return 0, refundStatusPending
	case payment.AwaitingCapture():
		if err := s.gateway.Cancel(ctx, payment.GatewayRef); err != nil {
			s.recordRefundFailure(ctx, booking, payment, err)
			return 0, refundStatusFailed
		}
		s.markPayment(ctx, payment, entity.PaymentStatusCanceled, 0)
		s.recordRefund(ctx, booking, payment, 0, "pre-authorization voided")
		return 0, refundStatusVoided
	case payment.Status != entity.PaymentStatusSucceeded:
		return 0, refundStatusNone
	}

	amount := utils.RoundMoney(payment.CapturedAmount * refundPercent / 100)
	if amount <= 0 {
		return 0, refundStatusNone
	}

	result, err := s.gateway.Refund(ctx, payment.GatewayRef, &amount, map[string]any{
		"booking_id":     booking.ID.String(),
		"refund_percent": refundPercent,
	})
	if err != nil {
		s.recordRefundFailure(ctx, booking, payment, err)
		return amount, refundStatusFailed
	}

	status := entity.PaymentStatusSucceeded
	if utils.ToMinorUnits(result.Amount) >= utils.ToMinorUnits(payment.CapturedAmount) {
		status = entity.PaymentStatusRefunded
	}
	s.markPayment(ctx, payment, status, result.Amount)
	s.recordRefund(ctx, booking, payment, result.Amount, result.RefundRef)

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeRefundIssued,
		Title:  "Refund issued",
		Body:   fmt.Sprintf("%s is on its way back to your card.", notify.FormatAmount("en", result.Amount, payment.Currency)),
		Data:   map[string]any{"booking_id": booking.ID.String(), "amount": result.Amount},
	})
	return result.Amount, refundStatusIssued
}

func (s *bookingService) markPayment(ctx context.Context, payment *entity.Payment, status entity.PaymentStatus, refunded float64) {
	payment.Status = status
	payment.RefundedAmount = utils.RoundMoney(payment.RefundedAmount + refunded)
	payment.UpdatedAt = s.now()
	if err := s.repo.Payment.Update(ctx, payment); err != nil {
		s.log.Error("Failed to record payment refund",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
	}
}

func (s *bookingService) recordRefund(ctx context.Context, booking *entity.Booking, payment *entity.Payment, amount float64, ref string) {
	err := appendTimeline(ctx, s.repo, s.now(), timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventBookingRefundIssued,
		automatic: true,
		payload: map[string]any{
			"payment_id": payment.ID.String(),
			"amount":     amount,
			"reference":  ref,
		},
	})
	if err != nil {
		s.log.Error("Failed to record refund", zap.Error(err), zap.String("booking_id", booking.ID.String()))
	}
}

func (s *bookingService) recordRefundFailure(ctx context.Context, booking *entity.Booking, payment *entity.Payment, cause error) {
	s.log.Error("Cancellation refund failed",
		zap.Error(cause),
		zap.String("booking_id", booking.ID.String()),
		zap.String("gateway_ref", payment.GatewayRef),
	)
	err := appendTimeline(ctx, s.repo, s.now(), timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventBookingRefundFailed,
		automatic: true,
		payload: map[string]any{
			"payment_id": payment.ID.String(),
			"error":      cause.Error(),
		},
	})
	if err != nil {
		s.log.Error("Failed to record refund failure", zap.Error(err), zap.String("booking_id", booking.ID.String()))
	}
}

// releaseDeposit frees a still-held caution deposit of a booking that will
// not run. Best-effort.
func (s *bookingService) releaseDeposit(ctx context.Context, bookingID uuid.UUID, actorID *uuid.UUID, reason string) {
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if deposit == nil || deposit.IsResolved() {
			return nil
		}
		return s.deposits.releaseLocked(ctx, repo, deposit, actorID, reason, actorID == nil)
	})
	if err != nil {
		s.log.Error("Failed to release caution deposit",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
	}
}

// lockPendingApproval loads and checks a booking awaiting the host's decision.
func (s *bookingService) lockPendingApproval(ctx context.Context, repo *repository.Repository, hostID uuid.UUID, bookingID string) (*entity.Booking, *entity.Payment, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, nil, err
	}

	booking, err := repo.Booking.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, notFoundf("booking %s not found", bookingID)
	}
	if booking.HostID != hostID {
		return nil, nil, forbiddenf("only the host can decide on this booking")
	}
	if !booking.ManualApproval {
		return nil, nil, conflictf("booking does not require approval")
	}
	if booking.Status != entity.BookingStatusPendingApproval {
		return nil, nil, conflictf("booking is %s, only PENDING_APPROVAL bookings can be decided", booking.Status)
	}
	if booking.ApprovalExpired || (booking.ApprovalDeadline != nil && !s.now().Before(*booking.ApprovalDeadline)) {
		return nil, nil, conflictf("approval deadline has passed")
	}

	payment, err := repo.Payment.FindLatestByBookingAndType(ctx, booking.ID, entity.PaymentTypeBooking)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil || !payment.AwaitingCapture() {
		return nil, nil, conflictf("booking has no authorized payment awaiting capture")
	}
	return booking, payment, nil
}

func (s *bookingService) Approve(ctx context.Context, hostID uuid.UUID, bookingID string) (*response.BookingResponse, error) {
	var booking *entity.Booking
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		var (
			payment *entity.Payment
			err     error
		)
		booking, payment, err = s.lockPendingApproval(ctx, repo, hostID, bookingID)
		if err != nil {
			return err
		}

		result, err := s.gateway.Capture(ctx, payment.GatewayRef, nil)
		if err != nil {
			s.log.Error("Failed to capture booking payment on approval",
				zap.Error(err),
				zap.String("booking_id", bookingID),
				zap.String("gateway_ref", payment.GatewayRef),
			)
			return gatewayErr("capture", err)
		}

		now := s.now()
		payment.CapturedAmount = result.CapturedAmount
		payment.UpdatedAt = now
		if err := repo.Payment.Update(ctx, payment); err != nil {
			return err
		}

		booking.Status = entity.BookingStatusConfirmed
		booking.ApprovalDeadline = nil
		booking.UpdatedAt = now
		if err := repo.Booking.Update(ctx, booking); err != nil {
			return err
		}

		err = appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventBookingApproved,
			actorID:   actor(hostID),
			payload: map[string]any{
				"payment_id": payment.ID.String(),
				"captured":   result.CapturedAmount,
			},
		})
		if err != nil {
			return err
		}

		_, err = s.payouts.schedule(ctx, repo, booking)
		return err
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeBookingApproved,
		Title:  "Booking approved",
		Body:   "The host approved your booking request.",
		Data:   map[string]any{"booking_id": booking.ID.String()},
	})

	s.log.Info("Booking approved",
		zap.String("booking_id", bookingID),
		zap.String("host_id", hostID.String()),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) Reject(ctx context.Context, hostID uuid.UUID, bookingID string, req *request.RejectBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	var booking *entity.Booking
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		var (
			payment *entity.Payment
			err     error
		)
		booking, payment, err = s.lockPendingApproval(ctx, repo, hostID, bookingID)
		if err != nil {
			return err
		}

		if err := s.gateway.Cancel(ctx, payment.GatewayRef); err != nil {
			s.log.Error("Failed to void pre-authorization on reject",
				zap.Error(err),
				zap.String("booking_id", bookingID),
				zap.String("gateway_ref", payment.GatewayRef),
			)
			return gatewayErr("cancel", err)
		}

		now := s.now()
		payment.Status = entity.PaymentStatusCanceled
		payment.UpdatedAt = now
		if err := repo.Payment.Update(ctx, payment); err != nil {
			return err
		}

		booking.Status = entity.BookingStatusCancelled
		booking.ApprovalDeadline = nil
		booking.CancelledAt = timePtr(now)
		booking.CancelledBy = actor(hostID)
		booking.CancelReason = req.Reason
		booking.UpdatedAt = now
		if err := repo.Booking.Update(ctx, booking); err != nil {
			return err
		}

		payload := map[string]any{"payment_id": payment.ID.String()}
		if req.Reason != nil {
			payload["reason"] = *req.Reason
		}
		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventBookingRejected,
			actorID:   actor(hostID),
			payload:   payload,
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.releaseDeposit(ctx, booking.ID, actor(hostID), "booking rejected")

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeBookingRejected,
		Title:  "Booking request declined",
		Body:   "The host declined your request. Your card was not charged.",
		Data:   map[string]any{"booking_id": booking.ID.String()},
	})

	s.log.Info("Booking rejected",
		zap.String("booking_id", bookingID),
		zap.String("host_id", hostID.String()),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// ==================== SCHEDULER ====================

// approvalExpiryRetryAfter is how long a flagged booking may stay
// PENDING_APPROVAL before a later run takes it over.
const approvalExpiryRetryAfter = 15 * time.Minute

// ExpirePendingApprovals cancels bookings whose host let the approval
// deadline pass. The approval_expired flag is flipped before any side effect
// so overlapping runs process a booking once. A booking flagged by a run that
// failed before cancelling is retried once the flag is stale.
func (s *bookingService) ExpirePendingApprovals(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	now := s.now()
	staleBefore := now.Add(-approvalExpiryRetryAfter)
	expired, err := s.repo.Booking.FindExpiredPendingApproval(ctx, now, staleBefore, limit)
	if err != nil {
		return result, err
	}
	result.Scanned = len(expired)

	for _, booking := range expired {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		won, err := s.repo.Booking.MarkApprovalExpired(ctx, booking.ID, now, staleBefore)
		if err != nil {
			result.Failed++
			s.log.Warn("Failed to flag expired approval", zap.Error(err), zap.String("booking_id", booking.ID.String()))
			continue
		}
		if !won {
			continue
		}

		if err := s.expire(ctx, booking.ID); err != nil {
			result.Failed++
			s.log.Warn("Failed to expire booking", zap.Error(err), zap.String("booking_id", booking.ID.String()))
			continue
		}
		result.Processed++
	}

	return result, nil
}

func (s *bookingService) expire(ctx context.Context, bookingID uuid.UUID) error {
	voided := false
	payment, err := s.repo.Payment.FindLatestByBookingAndType(ctx, bookingID, entity.PaymentTypeBooking)
	if err != nil {
		return err
	}
	if payment != nil && payment.AwaitingCapture() {
		if err := s.gateway.Cancel(ctx, payment.GatewayRef); err != nil {
			s.log.Error("Failed to void pre-authorization of expired booking",
				zap.Error(err),
				zap.String("booking_id", bookingID.String()),
				zap.String("gateway_ref", payment.GatewayRef),
			)
		} else {
			voided = true
		}
	}

	var booking *entity.Booking
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		booking, err = repo.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil || booking.Status != entity.BookingStatusPendingApproval {
			booking = nil
			return nil
		}

		now := s.now()
		if voided {
			payment.Status = entity.PaymentStatusCanceled
			payment.UpdatedAt = now
			if err := repo.Payment.Update(ctx, payment); err != nil {
				return err
			}
		}

		booking.Status = entity.BookingStatusCancelled
		booking.CancelledAt = timePtr(now)
		booking.CancelReason = strPtr("host did not respond before the approval deadline")
		booking.UpdatedAt = now
		if err := repo.Booking.Update(ctx, booking); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventBookingAutoExpired,
			automatic: true,
			payload: map[string]any{
				"approval_deadline": booking.ApprovalDeadline,
				"voided":            voided,
			},
		})
	})
	if err != nil || booking == nil {
		return err
	}

	s.releaseDeposit(ctx, booking.ID, nil, "booking approval expired")

	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeBookingExpired,
		Title:  "Booking request expired",
		Body:   "The host did not respond in time. Your card was not charged.",
		Data:   map[string]any{"booking_id": booking.ID.String()},
	})

	s.log.Info("Booking approval expired", zap.String("booking_id", booking.ID.String()))
	return nil
}
