package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/dto/request"
	"vehicle-rental/internal/dto/response"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"
	"vehicle-rental/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, guestID uuid.UUID, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error)

	// Gateway confirmation path. Both are safe under re-delivery.
	HandlePaymentSucceeded(ctx context.Context, gatewayRef string) error
	HandlePaymentFailed(ctx context.Context, gatewayRef, reason string) error
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type paymentService struct {
	*core
	payouts  *payoutService
	deposits *depositService
	log      *zap.Logger
}

func newPaymentService(c *core, payouts *payoutService, deposits *depositService, log *zap.Logger) *paymentService {
	return &paymentService{
		core:     c,
		payouts:  payouts,
		deposits: deposits,
		log:      log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, guestID uuid.UUID, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	paymentType := entity.PaymentType(req.Type)
	if paymentType == entity.PaymentTypeCaution {
		return s.deposits.CreateCautionHold(ctx, guestID, req.BookingID, req.Source)
	}

	bookingID, err := parseID("booking", req.BookingID)
	if err != nil {
		return nil, err
	}

	var (
		payment *entity.Payment
		booking *entity.Booking
		reused  bool
	)
	err = s.repo.Tx.WithinTx(ctx, pgx.Serializable, func(repo *repository.Repository) error {
		booking, err = repo.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return notFoundf("booking %s not found", req.BookingID)
		}
		if booking.GuestID != guestID {
			return forbiddenf("only the guest can pay for this booking")
		}
		if req.Currency != "" && !strings.EqualFold(req.Currency, booking.Currency) {
			return validationf("currency %s does not match booking currency %s", req.Currency, booking.Currency)
		}

		payment, reused, err = s.reuseExisting(ctx, repo, booking, paymentType, req.IdempotencyKey)
		if err != nil || payment != nil {
			return err
		}

		switch paymentType {
		case entity.PaymentTypeBooking:
			if err := s.checkBookingPayable(ctx, repo, booking, req.Amount); err != nil {
				return err
			}
		case entity.PaymentTypeExtra:
			if booking.Status != entity.BookingStatusConfirmed && booking.Status != entity.BookingStatusInProgress {
				return conflictf("extras can only be paid on a CONFIRMED or IN_PROGRESS booking, booking is %s", booking.Status)
			}
			if req.Amount <= 0 {
				return validationf("amount must be greater than 0")
			}
		}

		payment, err = s.authorize(ctx, repo, booking, paymentType, req)
		return err
	})
	if err != nil {
		return nil, txErr(err)
	}

	resp := response.PaymentToIntentResponse(payment, booking.ApprovalDeadline, reused)
	return &resp, nil
}

// reuseExisting returns the payment a retried request must get back: the one
// carrying the same idempotency key, else the PENDING one for (booking, type).
func (s *paymentService) reuseExisting(ctx context.Context, repo *repository.Repository, booking *entity.Booking, paymentType entity.PaymentType, key *string) (*entity.Payment, bool, error) {
	if key != nil && *key != "" {
		existing, err := repo.Payment.FindByIdempotencyKey(ctx, *key)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			if existing.BookingID != booking.ID || existing.Type != paymentType {
				return nil, false, conflictf("idempotency key %s is already used by another payment", *key)
			}
			return existing, true, nil
		}
	}

	pending, err := repo.Payment.FindPendingByBookingAndType(ctx, booking.ID, paymentType)
	if err != nil {
		return nil, false, err
	}
	if pending != nil {
		return pending, true, nil
	}
	return nil, false, nil
}

// checkBookingPayable re-runs the creation-time overlap check under the same
// resource lock so two guests cannot both reach authorization.
func (s *paymentService) checkBookingPayable(ctx context.Context, repo *repository.Repository, booking *entity.Booking, amount float64) error {
	if booking.Status != entity.BookingStatusPending {
		return conflictf("booking is %s, only PENDING bookings can be paid", booking.Status)
	}
	if utils.ToMinorUnits(amount) != utils.ToMinorUnits(booking.TotalAmount) {
		return validationf("amount %.2f does not match booking total %.2f", amount, booking.TotalAmount)
	}

	overlapping, err := s.countConflicts(ctx, repo, booking, true)
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return conflictf("vehicle is no longer available for the selected dates")
	}
	return nil
}

// countConflicts counts the other bookings holding the window of booking
// under its resource lock. With inFlight set, PENDING bookings whose payment
// is still at the gateway hold it too.
func (s *paymentService) countConflicts(ctx context.Context, repo *repository.Repository, booking *entity.Booking, inFlight bool) (int64, error) {
	if err := repo.Booking.LockResource(ctx, booking.ResourceKey()); err != nil {
		return 0, err
	}

	listingIDs, err := s.catalog.GetSiblingListingIDs(ctx, booking.ListingID, booking.VehicleID)
	if err != nil {
		return 0, err
	}
	return repo.Booking.CountOverlapping(ctx, repository.OverlapQuery{
		ListingIDs:             listingIDs,
		VehicleID:              booking.VehicleID,
		StartAt:                booking.StartAt,
		EndAt:                  booking.EndAt,
		ExcludeBookingID:       &booking.ID,
		IncludePendingApproval: booking.ManualApproval,
		IncludePaymentInFlight: inFlight,
		Now:                    s.now(),
	})
}

func (s *paymentService) authorize(ctx context.Context, repo *repository.Repository, booking *entity.Booking, paymentType entity.PaymentType, req *request.CreatePaymentIntentRequest) (*entity.Payment, error) {
	amount := req.Amount
	if paymentType == entity.PaymentTypeBooking {
		amount = booking.TotalAmount
	}
	manualCapture := paymentType == entity.PaymentTypeBooking && booking.ManualApproval

	key := utils.GenerateIdempotencyKey(booking.ID, string(paymentType))
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		key = *req.IdempotencyKey
	}

	auth, err := s.gateway.Authorize(ctx, gateway.AuthorizeRequest{
		Amount:         amount,
		Currency:       booking.Currency,
		ManualCapture:  manualCapture,
		Source:         req.Source,
		IdempotencyKey: key,
		Metadata: map[string]any{
			"booking_id": booking.ID.String(),
			"type":       string(paymentType),
		},
	})
	if err != nil {
		s.log.Error("Failed to authorize payment",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("type", string(paymentType)),
		)
		return nil, gatewayErr("authorize", err)
	}

	now := s.now()
	payment := &entity.Payment{
		BookingID:      booking.ID,
		Type:           paymentType,
		Amount:         amount,
		Currency:       booking.Currency,
		Status:         entity.PaymentStatusPending,
		ManualCapture:  manualCapture,
		GatewayRef:     auth.IntentRef,
		ClientSecret:   auth.ClientSecret,
		IdempotencyKey: key,
		Metadata:       map[string]any{"idempotency_key": key},
	}
	payment.ID = uuid.New()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if err := repo.Payment.Create(ctx, payment); err != nil {
		return nil, err
	}

	if manualCapture {
		listing, err := s.catalog.GetListingPricingRules(ctx, booking.ListingID)
		if err != nil {
			return nil, err
		}
		minNotice := 0
		if listing != nil {
			minNotice = listing.MinBookingNoticeHours
		}
		booking.ApprovalDeadline = timePtr(ApprovalDeadline(now, booking.StartAt, minNotice))
		booking.UpdatedAt = now
		if err := repo.Booking.Update(ctx, booking); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{
		"payment_id":     payment.ID.String(),
		"type":           string(paymentType),
		"amount":         amount,
		"manual_capture": manualCapture,
		"gateway_ref":    payment.GatewayRef,
	}
	if booking.ApprovalDeadline != nil {
		payload["approval_deadline"] = *booking.ApprovalDeadline
	}
	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventPaymentIntentCreated,
		actorID:   actor(booking.GuestID),
		payload:   payload,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment intent created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("type", string(paymentType)),
		zap.Bool("manual_capture", manualCapture),
	)
	return payment, nil
}

// ==================== GATEWAY CONFIRMATION ====================

func (s *paymentService) HandlePaymentSucceeded(ctx context.Context, gatewayRef string) error {
	var (
		payment   *entity.Payment
		booking   *entity.Booking
		orphaned  bool
		duplicate bool
	)
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		var err error
		payment, err = repo.Payment.FindByGatewayRefForUpdate(ctx, gatewayRef)
		if err != nil {
			return err
		}
		if payment == nil {
			return notFoundf("payment with gateway ref %s not found", gatewayRef)
		}
		if payment.Status != entity.PaymentStatusPending {
			duplicate = true
			return nil
		}

		now := s.now()
		payment.Status = entity.PaymentStatusSucceeded
		if !payment.ManualCapture {
			payment.CapturedAmount = payment.Amount
		}
		payment.UpdatedAt = now
		if err := repo.Payment.Update(ctx, payment); err != nil {
			return err
		}

		err = appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: payment.BookingID,
			eventType: entity.EventPaymentSucceeded,
			automatic: true,
			payload: map[string]any{
				"payment_id":  payment.ID.String(),
				"type":        string(payment.Type),
				"gateway_ref": gatewayRef,
			},
		})
		if err != nil {
			return err
		}

		switch payment.Type {
		case entity.PaymentTypeBooking:
			booking, orphaned, err = s.confirmBooking(ctx, repo, payment)
			return err
		case entity.PaymentTypeCaution:
			return appendTimeline(ctx, repo, now, timelineEntry{
				bookingID: payment.BookingID,
				eventType: entity.EventDepositHeld,
				automatic: true,
				payload: map[string]any{
					"payment_id": payment.ID.String(),
					"amount":     payment.Amount,
				},
			})
		}
		return nil
	})
	if err != nil {
		return txErr(err)
	}

	if duplicate {
		s.log.Info("Duplicate payment success ignored",
			zap.String("gateway_ref", gatewayRef),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}

	if orphaned {
		s.returnFunds(ctx, payment, "booking cancelled before payment confirmation")
		return nil
	}

	if booking != nil {
		switch booking.Status {
		case entity.BookingStatusPendingApproval:
			s.notifier.Notify(ctx, notify.Notification{
				UserID: booking.HostID,
				Type:   notify.TypeBookingRequested,
				Title:  "New booking request",
				Body:   "A guest has requested your vehicle. Please approve or reject the request.",
				Data:   map[string]any{"booking_id": booking.ID.String(), "approval_deadline": booking.ApprovalDeadline},
			})
		case entity.BookingStatusConfirmed:
			s.notifyConfirmed(ctx, booking)
		}
	}

	s.log.Info("Payment succeeded",
		zap.String("gateway_ref", gatewayRef),
		zap.String("payment_id", payment.ID.String()),
		zap.String("type", string(payment.Type)),
	)
	return nil
}

// confirmBooking advances the booking of a succeeded BOOKING payment. It
// reports orphaned when the booking was cancelled while the payment was in
// flight, or is cancelled here because another booking took the window
// first.
func (s *paymentService) confirmBooking(ctx context.Context, repo *repository.Repository, payment *entity.Payment) (*entity.Booking, bool, error) {
	booking, err := repo.Booking.FindByIDForUpdate(ctx, payment.BookingID)
	if err != nil {
		return nil, false, err
	}
	if booking == nil {
		return nil, false, notFoundf("booking %s not found", payment.BookingID)
	}
	if booking.Status == entity.BookingStatusCancelled {
		return booking, true, nil
	}
	if booking.Status != entity.BookingStatusPending {
		s.log.Warn("Payment succeeded for a booking that is not PENDING",
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", string(booking.Status)),
		)
		return booking, false, nil
	}

	overlapping, err := s.countConflicts(ctx, repo, booking, false)
	if err != nil {
		return nil, false, err
	}
	if overlapping > 0 {
		if err := s.cancelLostRace(ctx, repo, booking, payment); err != nil {
			return nil, false, err
		}
		return booking, true, nil
	}

	next := entity.BookingStatusConfirmed
	if booking.ManualApproval {
		next = entity.BookingStatusPendingApproval
	}

	now := s.now()
	from := booking.Status
	booking.Status = next
	booking.UpdatedAt = now
	if err := repo.Booking.Update(ctx, booking); err != nil {
		return nil, false, err
	}

	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventBookingStatusChanged,
		automatic: true,
		payload: map[string]any{
			"from":       string(from),
			"to":         string(next),
			"payment_id": payment.ID.String(),
		},
	})
	if err != nil {
		return nil, false, err
	}

	if next == entity.BookingStatusConfirmed {
		if _, err := s.payouts.schedule(ctx, repo, booking); err != nil {
			return nil, false, err
		}
	}
	return booking, false, nil
}

func (s *paymentService) cancelLostRace(ctx context.Context, repo *repository.Repository, booking *entity.Booking, payment *entity.Payment) error {
	now := s.now()
	from := booking.Status
	booking.Status = entity.BookingStatusCancelled
	booking.CancelledAt = timePtr(now)
	booking.CancelReason = strPtr("vehicle was booked by another guest before payment confirmation")
	booking.UpdatedAt = now
	if err := repo.Booking.Update(ctx, booking); err != nil {
		return err
	}

	s.log.Warn("Booking lost its window before payment confirmation",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payment_id", payment.ID.String()),
	)

	return appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventBookingStatusChanged,
		automatic: true,
		payload: map[string]any{
			"from":       string(from),
			"to":         string(entity.BookingStatusCancelled),
			"payment_id": payment.ID.String(),
			"reason":     "overlap",
		},
	})
}

// returnFunds voids or refunds a payment whose booking no longer exists as
// a live rental. Failures are logged; nothing is rolled back.
func (s *paymentService) returnFunds(ctx context.Context, payment *entity.Payment, reason string) {
	var err error
	next := entity.PaymentStatusCanceled
	if payment.ManualCapture {
		err = s.gateway.Cancel(ctx, payment.GatewayRef)
	} else {
		next = entity.PaymentStatusRefunded
		_, err = s.gateway.Refund(ctx, payment.GatewayRef, nil, map[string]any{"reason": reason})
	}
	if err != nil {
		s.log.Error("Failed to return funds for cancelled booking",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("gateway_ref", payment.GatewayRef),
		)
		return
	}

	now := s.now()
	payment.Status = next
	if next == entity.PaymentStatusRefunded {
		payment.RefundedAmount = payment.CapturedAmount
	}
	payment.UpdatedAt = now
	if err := s.repo.Payment.Update(ctx, payment); err != nil {
		s.log.Error("Failed to record returned funds",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
	}
}

func (s *paymentService) notifyConfirmed(ctx context.Context, booking *entity.Booking) {
	data := map[string]any{"booking_id": booking.ID.String()}
	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeBookingConfirmed,
		Title:  "Booking confirmed",
		Body:   fmt.Sprintf("Your booking is confirmed. Total paid: %s.", notify.FormatAmount("en", booking.TotalAmount, booking.Currency)),
		Data:   data,
	})
	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.HostID,
		Type:   notify.TypeBookingConfirmed,
		Title:  "New confirmed booking",
		Body:   "A guest has booked your vehicle.",
		Data:   data,
	})
}

func (s *paymentService) HandlePaymentFailed(ctx context.Context, gatewayRef, reason string) error {
	if reason == "" {
		reason = "payment failed"
	}

	var (
		payment   *entity.Payment
		duplicate bool
	)
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		var err error
		payment, err = repo.Payment.FindByGatewayRefForUpdate(ctx, gatewayRef)
		if err != nil {
			return err
		}
		if payment == nil {
			return notFoundf("payment with gateway ref %s not found", gatewayRef)
		}
		if payment.Status != entity.PaymentStatusPending {
			duplicate = true
			return nil
		}

		now := s.now()
		payment.Status = entity.PaymentStatusFailed
		payment.FailureReason = strPtr(reason)
		payment.UpdatedAt = now
		if err := repo.Payment.Update(ctx, payment); err != nil {
			return err
		}

		err = appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: payment.BookingID,
			eventType: entity.EventPaymentFailed,
			automatic: true,
			payload: map[string]any{
				"payment_id":  payment.ID.String(),
				"type":        string(payment.Type),
				"gateway_ref": gatewayRef,
				"reason":      reason,
			},
		})
		if err != nil {
			return err
		}

		if payment.Type != entity.PaymentTypeCaution {
			return nil
		}
		deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, payment.BookingID)
		if err != nil {
			return err
		}
		if deposit == nil || deposit.IsResolved() || deposit.PaymentID != payment.ID {
			return nil
		}
		return s.deposits.releaseLocked(ctx, repo, deposit, nil, "caution authorization failed", true)
	})
	if err != nil {
		return txErr(err)
	}

	if duplicate {
		s.log.Info("Duplicate payment failure ignored", zap.String("gateway_ref", gatewayRef))
		return nil
	}

	booking, err := s.repo.Booking.FindByID(ctx, payment.BookingID)
	if err == nil && booking != nil {
		s.notifier.Notify(ctx, notify.Notification{
			UserID: booking.GuestID,
			Type:   notify.TypePaymentFailed,
			Title:  "Payment failed",
			Body:   "Your payment could not be processed. Please try another card.",
			Data: map[string]any{
				"booking_id": booking.ID.String(),
				"reason":     reason,
			},
		})
	}

	s.log.Warn("Payment failed",
		zap.String("gateway_ref", gatewayRef),
		zap.String("payment_id", payment.ID.String()),
		zap.String("reason", reason),
	)
	return nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyWebhookSignature(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			s.log.Warn("Rejected webhook with invalid signature")
			return forbiddenf("invalid webhook signature")
		}
		return gatewayErr("verify webhook", err)
	}

	s.log.Info("Webhook received",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("gateway_ref", event.GatewayRef),
	)

	switch event.Type {
	case gateway.WebhookPaymentSucceeded:
		return s.HandlePaymentSucceeded(ctx, event.GatewayRef)
	case gateway.WebhookPaymentFailed:
		return s.HandlePaymentFailed(ctx, event.GatewayRef, event.FailureReason)
	}
	return nil
}
