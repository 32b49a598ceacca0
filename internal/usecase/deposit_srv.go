package usecase

import (
	"context"
	"fmt"
	"time"

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

// depositReleaseDelay is how long a validated return waits for a damage claim
// before the caution hold is released.
const depositReleaseDelay = 24 * time.Hour

type DepositService interface {
	CreateCautionHold(ctx context.Context, guestID uuid.UUID, bookingID, source string) (*response.PaymentIntentResponse, error)
	GetByBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.DepositResponse, error)

	// Admin methods
	CaptureForAdmin(ctx context.Context, adminID uuid.UUID, bookingID string, req *request.CaptureCautionRequest) (*response.DepositResponse, error)
	ReleaseForAdmin(ctx context.Context, adminID uuid.UUID, bookingID string, req *request.ReleaseCautionRequest) (*response.DepositResponse, error)

	// Scheduler
	AutoReleaseDue(ctx context.Context, limit int) (SweepResult, error)
}

type depositService struct {
	*core
	log *zap.Logger
}

func newDepositService(c *core, log *zap.Logger) *depositService {
	return &depositService{
		core: c,
		log:  log.With(zap.String("service", "deposit")),
	}
}

func (s *depositService) CreateCautionHold(ctx context.Context, guestID uuid.UUID, bookingID, source string) (*response.PaymentIntentResponse, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}
	if source == "" {
		return nil, validationf("payment source is required")
	}

	var (
		payment *entity.Payment
		reused  bool
	)
	err = s.repo.Tx.WithinTx(ctx, pgx.Serializable, func(repo *repository.Repository) error {
		booking, err := repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking == nil {
			return notFoundf("booking %s not found", bookingID)
		}
		if booking.GuestID != guestID {
			return forbiddenf("only the guest can place the caution hold")
		}
		payment, reused, err = s.holdLocked(ctx, repo, booking, source)
		return err
	})
	if err != nil {
		return nil, txErr(err)
	}

	resp := response.PaymentToIntentResponse(payment, nil, reused)
	return &resp, nil
}

// holdLocked authorizes the caution amount without capture. The booking row
// must already be locked by the caller's transaction.
func (s *depositService) holdLocked(ctx context.Context, repo *repository.Repository, booking *entity.Booking, source string) (*entity.Payment, bool, error) {
	switch booking.Status {
	case entity.BookingStatusPendingApproval, entity.BookingStatusConfirmed, entity.BookingStatusInProgress:
	default:
		return nil, false, conflictf("caution hold cannot be placed on a %s booking", booking.Status)
	}
	if booking.CautionAmount <= 0 {
		return nil, false, validationf("listing does not require a caution deposit")
	}

	existing, err := repo.Deposit.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.IsResolved() {
			return nil, false, conflictf("caution deposit already %s", existing.Status)
		}
		payment, err := repo.Payment.FindByID(ctx, existing.PaymentID)
		if err != nil {
			return nil, false, err
		}
		return payment, true, nil
	}

	pending, err := repo.Payment.FindPendingByBookingAndType(ctx, booking.ID, entity.PaymentTypeCaution)
	if err != nil {
		return nil, false, err
	}
	if pending != nil {
		return pending, true, nil
	}

	idempotencyKey := utils.GenerateIdempotencyKey(booking.ID, string(entity.PaymentTypeCaution))
	auth, err := s.gateway.Authorize(ctx, gateway.AuthorizeRequest{
		Amount:         booking.CautionAmount,
		Currency:       booking.Currency,
		ManualCapture:  true,
		Source:         source,
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]any{
			"booking_id": booking.ID.String(),
			"type":       string(entity.PaymentTypeCaution),
		},
	})
	if err != nil {
		s.log.Error("Failed to authorize caution hold",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return nil, false, gatewayErr("authorize caution", err)
	}

	now := s.now()
	payment := &entity.Payment{
		BookingID:      booking.ID,
		Type:           entity.PaymentTypeCaution,
		Amount:         booking.CautionAmount,
		Currency:       booking.Currency,
		Status:         entity.PaymentStatusPending,
		ManualCapture:  true,
		GatewayRef:     auth.IntentRef,
		ClientSecret:   auth.ClientSecret,
		IdempotencyKey: idempotencyKey,
		Metadata:       map[string]any{"idempotency_key": idempotencyKey},
	}
	payment.ID = uuid.New()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if err := repo.Payment.Create(ctx, payment); err != nil {
		return nil, false, err
	}

	deposit := &entity.Deposit{
		BookingID:  booking.ID,
		PaymentID:  payment.ID,
		HoldAmount: booking.CautionAmount,
		Currency:   booking.Currency,
		Status:     entity.DepositStatusPreauthorized,
	}
	deposit.ID = uuid.New()
	deposit.CreatedAt = now
	deposit.UpdatedAt = now
	if err := repo.Deposit.Create(ctx, deposit); err != nil {
		return nil, false, err
	}

	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventPaymentIntentCreated,
		actorID:   actor(booking.GuestID),
		payload: map[string]any{
			"payment_id":  payment.ID.String(),
			"type":        string(entity.PaymentTypeCaution),
			"amount":      payment.Amount,
			"gateway_ref": payment.GatewayRef,
		},
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Info("Caution hold created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("deposit_id", deposit.ID.String()),
		zap.Float64("amount", deposit.HoldAmount),
	)
	return payment, false, nil
}

func (s *depositService) GetByBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.DepositResponse, error) {
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

	deposit, err := s.repo.Deposit.FindByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, notFoundf("no caution deposit for booking %s", bookingID)
	}

	resp := response.DepositToResponse(deposit)
	return &resp, nil
}

// ==================== ADMIN METHODS ====================

func (s *depositService) CaptureForAdmin(ctx context.Context, adminID uuid.UUID, bookingID string, req *request.CaptureCautionRequest) (*response.DepositResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	var captured *entity.Deposit
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		deposit, err := s.lockDeposit(ctx, repo, id)
		if err != nil {
			return err
		}
		captured = deposit
		return s.captureLocked(ctx, repo, deposit, req.Amount, actor(adminID), req.Reason)
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Caution captured by admin",
		zap.String("booking_id", bookingID),
		zap.String("admin_id", adminID.String()),
		zap.Float64("amount", req.Amount),
	)

	resp := response.DepositToResponse(captured)
	return &resp, nil
}

func (s *depositService) ReleaseForAdmin(ctx context.Context, adminID uuid.UUID, bookingID string, req *request.ReleaseCautionRequest) (*response.DepositResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	var released *entity.Deposit
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		deposit, err := s.lockDeposit(ctx, repo, id)
		if err != nil {
			return err
		}
		released = deposit
		return s.releaseLocked(ctx, repo, deposit, actor(adminID), req.Reason, false)
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Caution released by admin",
		zap.String("booking_id", bookingID),
		zap.String("admin_id", adminID.String()),
	)

	resp := response.DepositToResponse(released)
	return &resp, nil
}

func (s *depositService) lockDeposit(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID) (*entity.Deposit, error) {
	deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, notFoundf("no caution deposit for booking %s", bookingID)
	}
	return deposit, nil
}

// captureLocked takes amount from the hold. The deposit row must be locked;
// its PREAUTHORIZED status is the single-writer gate.
func (s *depositService) captureLocked(ctx context.Context, repo *repository.Repository, deposit *entity.Deposit, amount float64, actorID *uuid.UUID, reason string) error {
	if deposit.IsResolved() {
		return conflictf("caution deposit already %s", deposit.Status)
	}
	amount = utils.RoundMoney(amount)
	if amount <= 0 {
		return validationf("capture amount must be greater than 0")
	}
	if utils.ToMinorUnits(amount) > utils.ToMinorUnits(deposit.HoldAmount) {
		return validationf("capture amount %.2f exceeds the hold of %.2f", amount, deposit.HoldAmount)
	}

	payment, err := repo.Payment.FindByID(ctx, deposit.PaymentID)
	if err != nil {
		return err
	}
	if payment == nil || payment.Status != entity.PaymentStatusSucceeded {
		return conflictf("caution hold is not authorized yet")
	}

	result, err := s.gateway.Capture(ctx, payment.GatewayRef, &amount)
	if err != nil {
		s.log.Error("Failed to capture caution",
			zap.Error(err),
			zap.String("booking_id", deposit.BookingID.String()),
			zap.String("gateway_ref", payment.GatewayRef),
		)
		return gatewayErr("capture caution", err)
	}

	now := s.now()
	deposit.CapturedAmount = result.CapturedAmount
	deposit.Status = entity.DepositStatusCapturedPartial
	if utils.ToMinorUnits(amount) == utils.ToMinorUnits(deposit.HoldAmount) {
		deposit.Status = entity.DepositStatusCapturedFull
	}
	deposit.ResolvedBy = actorID
	deposit.ResolvedAt = timePtr(now)
	deposit.ResolutionReason = strPtr(reason)
	deposit.UpdatedAt = now
	if err := repo.Deposit.Update(ctx, deposit); err != nil {
		return err
	}

	payment.CapturedAmount = result.CapturedAmount
	payment.UpdatedAt = now
	if err := repo.Payment.Update(ctx, payment); err != nil {
		return err
	}

	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: deposit.BookingID,
		eventType: entity.EventDepositCaptured,
		actorID:   actorID,
		automatic: actorID == nil,
		payload: map[string]any{
			"deposit_id": deposit.ID.String(),
			"amount":     result.CapturedAmount,
			"status":     string(deposit.Status),
			"reason":     reason,
		},
	})
	if err != nil {
		return err
	}

	s.notifyResolved(ctx, repo, deposit)
	return nil
}

// releaseLocked voids the hold without charging. The deposit row must be
// locked.
func (s *depositService) releaseLocked(ctx context.Context, repo *repository.Repository, deposit *entity.Deposit, actorID *uuid.UUID, reason string, automatic bool) error {
	if deposit.IsResolved() {
		return conflictf("caution deposit already %s", deposit.Status)
	}

	payment, err := repo.Payment.FindByID(ctx, deposit.PaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return notFoundf("caution payment %s not found", deposit.PaymentID)
	}

	now := s.now()
	// A failed authorization holds nothing to void.
	if payment.Status != entity.PaymentStatusFailed {
		if err := s.gateway.Cancel(ctx, payment.GatewayRef); err != nil {
			s.log.Error("Failed to release caution",
				zap.Error(err),
				zap.String("booking_id", deposit.BookingID.String()),
				zap.String("gateway_ref", payment.GatewayRef),
			)
			return gatewayErr("release caution", err)
		}
		payment.Status = entity.PaymentStatusCanceled
		payment.UpdatedAt = now
		if err := repo.Payment.Update(ctx, payment); err != nil {
			return err
		}
	}

	deposit.Status = entity.DepositStatusReleased
	deposit.ResolvedBy = actorID
	deposit.ResolvedAt = timePtr(now)
	deposit.ResolutionReason = strPtr(reason)
	deposit.UpdatedAt = now
	if err := repo.Deposit.Update(ctx, deposit); err != nil {
		return err
	}

	eventType := entity.EventDepositReleased
	if automatic {
		eventType = entity.EventDepositAutoReleased
	}
	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: deposit.BookingID,
		eventType: eventType,
		actorID:   actorID,
		automatic: automatic,
		payload: map[string]any{
			"deposit_id": deposit.ID.String(),
			"amount":     deposit.HoldAmount,
			"reason":     reason,
		},
	})
	if err != nil {
		return err
	}

	s.notifyResolved(ctx, repo, deposit)
	return nil
}

func (s *depositService) notifyResolved(ctx context.Context, repo *repository.Repository, deposit *entity.Deposit) {
	booking, err := repo.Booking.FindByID(ctx, deposit.BookingID)
	if err != nil || booking == nil {
		return
	}

	body := "Your caution deposit has been released."
	if deposit.Status != entity.DepositStatusReleased {
		body = fmt.Sprintf("%s has been captured from your caution deposit.",
			notify.FormatAmount("en", deposit.CapturedAmount, deposit.Currency))
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID: booking.GuestID,
		Type:   notify.TypeDepositResolved,
		Title:  "Caution deposit update",
		Body:   body,
		Data: map[string]any{
			"booking_id": deposit.BookingID.String(),
			"status":     string(deposit.Status),
		},
	})
}

// ==================== SCHEDULER ====================

// AutoReleaseDue releases the hold of every booking whose return inspection
// was validated more than a day ago and has no open damage claim.
func (s *depositService) AutoReleaseDue(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	returns, err := s.repo.Inspection.FindValidatedReturnsBefore(ctx, s.now().Add(-depositReleaseDelay), limit)
	if err != nil {
		return result, err
	}
	result.Scanned = len(returns)

	for _, inspection := range returns {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		released, err := s.autoRelease(ctx, inspection.BookingID)
		if err != nil {
			result.Failed++
			s.log.Warn("Deposit auto-release failed",
				zap.Error(err),
				zap.String("booking_id", inspection.BookingID.String()),
			)
			continue
		}
		if released {
			result.Processed++
		}
	}

	return result, nil
}

func (s *depositService) autoRelease(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	released := false
	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if deposit == nil || deposit.IsResolved() {
			return nil
		}

		claim, err := repo.Claim.FindNotClosedByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if claim != nil {
			return nil
		}

		if err := s.releaseLocked(ctx, repo, deposit, nil, "no damage claim filed within 24h of return", true); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}
