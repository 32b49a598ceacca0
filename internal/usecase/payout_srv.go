package usecase

import (
	"context"
	"fmt"

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

// CommissionRate is the platform's share of every booking.
const CommissionRate = 0.15

type PayoutService interface {
	GetByBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.PayoutResponse, error)

	// Admin overrides
	ForceProcess(ctx context.Context, adminID uuid.UUID, payoutID string) (*response.PayoutResponse, error)
	Reverse(ctx context.Context, adminID uuid.UUID, payoutID string, req *request.ReversePayoutRequest) (*response.PayoutResponse, error)

	// Scheduler
	ProcessDue(ctx context.Context, limit int) (SweepResult, error)
}

type payoutService struct {
	*core
	log *zap.Logger
}

func newPayoutService(c *core, log *zap.Logger) *payoutService {
	return &payoutService{
		core: c,
		log:  log.With(zap.String("service", "payout")),
	}
}

// SplitCommission returns the commission and host share of total, both
// rounded to cents. hostAmount + commission == total.
func SplitCommission(total float64) (commission, hostAmount float64) {
	commission = utils.RoundMoney(total * CommissionRate)
	hostAmount = utils.RoundMoney(total - commission)
	return commission, hostAmount
}

// schedule creates the payout of a confirmed booking. It is idempotent per
// booking and must run inside the confirming transaction.
func (s *payoutService) schedule(ctx context.Context, repo *repository.Repository, booking *entity.Booking) (*entity.HostPayout, error) {
	existing, err := repo.Payout.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	commission, hostAmount := SplitCommission(booking.TotalAmount)
	payout := &entity.HostPayout{
		BookingID:        booking.ID,
		HostID:           booking.HostID,
		TotalAmount:      booking.TotalAmount,
		CommissionAmount: commission,
		HostAmount:       hostAmount,
		Currency:         booking.Currency,
		Status:           entity.PayoutStatusScheduled,
		ScheduledAt:      booking.EndAt,
	}
	payout.ID = uuid.New()
	payout.CreatedAt = now
	payout.UpdatedAt = now

	if err := repo.Payout.Create(ctx, payout); err != nil {
		return nil, err
	}

	err = appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: booking.ID,
		eventType: entity.EventPayoutScheduled,
		automatic: true,
		payload: map[string]any{
			"payout_id":    payout.ID.String(),
			"host_amount":  hostAmount,
			"commission":   commission,
			"scheduled_at": payout.ScheduledAt,
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Payout scheduled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payout_id", payout.ID.String()),
		zap.Float64("host_amount", hostAmount),
	)
	return payout, nil
}

// cancelUnpaid cancels SCHEDULED and FAILED payouts of a cancelled booking.
// Paid payouts are never reversed automatically.
func (s *payoutService) cancelUnpaid(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID) error {
	n, err := repo.Payout.CancelUnpaidByBookingID(ctx, bookingID, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return appendTimeline(ctx, repo, s.now(), timelineEntry{
		bookingID: bookingID,
		eventType: entity.EventPayoutCancelled,
		automatic: true,
		payload:   map[string]any{"count": n},
	})
}

func (s *payoutService) GetByBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID string) (*response.PayoutResponse, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	payout, err := s.repo.Payout.FindByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, notFoundf("payout for booking %s not found", bookingID)
	}
	if !isAdmin && payout.HostID != actorID {
		return nil, forbiddenf("only the host can view this payout")
	}

	resp := response.PayoutToResponse(payout)
	return &resp, nil
}

// ==================== ADMIN METHODS ====================

func (s *payoutService) ForceProcess(ctx context.Context, adminID uuid.UUID, payoutID string) (*response.PayoutResponse, error) {
	id, err := parseID("payout", payoutID)
	if err != nil {
		return nil, err
	}

	payout, err := s.process(ctx, id, actor(adminID))
	if err != nil {
		return nil, err
	}

	resp := response.PayoutToResponse(payout)
	return &resp, nil
}

func (s *payoutService) Reverse(ctx context.Context, adminID uuid.UUID, payoutID string, req *request.ReversePayoutRequest) (*response.PayoutResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	id, err := parseID("payout", payoutID)
	if err != nil {
		return nil, err
	}

	var reversed *entity.HostPayout
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		payout, err := repo.Payout.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payout == nil {
			return notFoundf("payout %s not found", payoutID)
		}
		if payout.Status != entity.PayoutStatusPaid {
			return conflictf("only PAID payouts can be reversed, payout is %s", payout.Status)
		}
		if payout.TransferRef == nil || *payout.TransferRef == "" {
			return conflictf("payout %s has no transfer reference", payoutID)
		}

		if err := s.gateway.ReverseTransfer(ctx, *payout.TransferRef); err != nil {
			s.log.Error("Failed to reverse payout transfer",
				zap.Error(err),
				zap.String("payout_id", payoutID),
			)
			return gatewayErr("reverse transfer", err)
		}

		now := s.now()
		payout.Status = entity.PayoutStatusReversed
		payout.FailureReason = strPtr(req.Reason)
		payout.UpdatedAt = now
		if err := repo.Payout.Update(ctx, payout); err != nil {
			return err
		}

		reversed = payout
		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: payout.BookingID,
			eventType: entity.EventPayoutReversed,
			actorID:   actor(adminID),
			payload: map[string]any{
				"payout_id":    payout.ID.String(),
				"transfer_ref": *payout.TransferRef,
				"reason":       req.Reason,
			},
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Payout reversed",
		zap.String("payout_id", payoutID),
		zap.String("admin_id", adminID.String()),
	)

	resp := response.PayoutToResponse(reversed)
	return &resp, nil
}

// ==================== SCHEDULER ====================

// ProcessDue transfers every payout whose rental has ended. A failing payout
// is left FAILED for a manual retry and the sweep continues.
func (s *payoutService) ProcessDue(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	due, err := s.repo.Payout.FindDue(ctx, s.now(), limit)
	if err != nil {
		return result, err
	}
	result.Scanned = len(due)

	for _, payout := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.process(ctx, payout.ID, nil); err != nil {
			result.Failed++
			s.log.Warn("Payout processing failed",
				zap.Error(err),
				zap.String("payout_id", payout.ID.String()),
				zap.String("booking_id", payout.BookingID.String()),
			)
			continue
		}
		result.Processed++
	}

	return result, nil
}

// process claims a SCHEDULED payout (SCHEDULED -> PROCESSING wins once) and
// transfers the host share. The gateway call happens after the claim so a
// second worker never transfers the same payout. An admin (actorID set) may
// also retry a FAILED payout.
func (s *payoutService) process(ctx context.Context, payoutID uuid.UUID, actorID *uuid.UUID) (*entity.HostPayout, error) {
	retryFailed := actorID != nil
	won, err := s.repo.Payout.ClaimForProcessing(ctx, payoutID, s.now(), retryFailed)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.repo.Payout.FindByID(ctx, payoutID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, notFoundf("payout %s not found", payoutID)
		}
		if retryFailed {
			return nil, conflictf("only SCHEDULED or FAILED payouts can be processed, payout is %s", current.Status)
		}
		return nil, conflictf("only SCHEDULED payouts can be processed, payout is %s", current.Status)
	}

	payout, err := s.repo.Payout.FindByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.catalog.GetHostPayoutAccount(ctx, payout.HostID)
	if err != nil {
		return nil, s.markFailed(ctx, payout, actorID, fmt.Sprintf("payout account lookup failed: %v", err), err)
	}
	if recipient == "" {
		return nil, s.markFailed(ctx, payout, actorID, "host has no payout account", conflictf("host %s has no payout account", payout.HostID))
	}

	ref, err := s.gateway.Transfer(ctx, gateway.TransferRequest{
		Amount:      payout.HostAmount,
		Currency:    payout.Currency,
		Destination: recipient,
		Metadata: map[string]any{
			"payout_id":  payout.ID.String(),
			"booking_id": payout.BookingID.String(),
		},
	})
	if err != nil {
		return nil, s.markFailed(ctx, payout, actorID, err.Error(), gatewayErr("transfer", err))
	}

	now := s.now()
	payout.Status = entity.PayoutStatusPaid
	payout.TransferRef = strPtr(ref)
	payout.FailureReason = nil
	payout.PaidAt = timePtr(now)
	payout.UpdatedAt = now

	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		if err := repo.Payout.Update(ctx, payout); err != nil {
			return err
		}
		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: payout.BookingID,
			eventType: entity.EventPayoutPaid,
			actorID:   actorID,
			automatic: actorID == nil,
			payload: map[string]any{
				"payout_id":    payout.ID.String(),
				"transfer_ref": ref,
				"host_amount":  payout.HostAmount,
			},
		})
	})
	if err != nil {
		// Money has moved; the row stays PROCESSING for reconciliation.
		s.log.Error("Transfer succeeded but payout update failed",
			zap.Error(err),
			zap.String("payout_id", payout.ID.String()),
			zap.String("transfer_ref", ref),
		)
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Notification{
		UserID: payout.HostID,
		Type:   notify.TypePayoutPaid,
		Title:  "Payout sent",
		Body:   fmt.Sprintf("Your payout of %s is on its way.", notify.FormatAmount("en", payout.HostAmount, payout.Currency)),
		Data:   map[string]any{"payout_id": payout.ID.String(), "booking_id": payout.BookingID.String()},
	})

	s.log.Info("Payout paid",
		zap.String("payout_id", payout.ID.String()),
		zap.String("transfer_ref", ref),
	)
	return payout, nil
}

func (s *payoutService) markFailed(ctx context.Context, payout *entity.HostPayout, actorID *uuid.UUID, reason string, cause error) error {
	now := s.now()
	payout.Status = entity.PayoutStatusFailed
	payout.FailureReason = strPtr(reason)
	payout.UpdatedAt = now

	err := s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		if err := repo.Payout.Update(ctx, payout); err != nil {
			return err
		}
		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: payout.BookingID,
			eventType: entity.EventPayoutFailed,
			actorID:   actorID,
			automatic: actorID == nil,
			payload: map[string]any{
				"payout_id": payout.ID.String(),
				"reason":    reason,
			},
		})
	})
	if err != nil {
		s.log.Error("Failed to record payout failure",
			zap.Error(err),
			zap.String("payout_id", payout.ID.String()),
		)
	}

	s.log.Error("Payout failed",
		zap.Error(cause),
		zap.String("payout_id", payout.ID.String()),
		zap.String("booking_id", payout.BookingID.String()),
	)

	s.notifier.Notify(ctx, notify.Notification{
		UserID: payout.HostID,
		Type:   notify.TypePayoutFailed,
		Title:  "Payout failed",
		Body:   "We could not send your payout. Our team will retry it.",
		Data:   map[string]any{"payout_id": payout.ID.String()},
	})
	return cause
}
