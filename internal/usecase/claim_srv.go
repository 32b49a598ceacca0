package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
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

const (
	// QuoteThreshold is the requested amount above which a repair quote is
	// mandatory.
	QuoteThreshold = 150.0

	claimFilingWindow    = 24 * time.Hour
	renterResponseWindow = 24 * time.Hour
	adminReviewWindow    = 48 * time.Hour
)

type claimDecision string

const (
	decisionApprove claimDecision = "approve"
	decisionAdjust  claimDecision = "adjust"
	decisionReject  claimDecision = "reject"
)

type ClaimService interface {
	Create(ctx context.Context, hostID uuid.UUID, req *request.CreateClaimRequest) (*response.ClaimResponse, error)
	Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, claimID string) (*response.ClaimResponse, error)
	Submit(ctx context.Context, hostID uuid.UUID, claimID string) (*response.ClaimResponse, error)
	RenterRespond(ctx context.Context, renterID uuid.UUID, claimID string, req *request.RenterResponseRequest) (*response.ClaimResponse, error)

	// Admin methods
	Approve(ctx context.Context, adminID uuid.UUID, claimID string, req *request.ClaimDecisionRequest) (*response.ClaimResponse, error)
	Adjust(ctx context.Context, adminID uuid.UUID, claimID string, req *request.AdjustClaimRequest) (*response.ClaimResponse, error)
	Reject(ctx context.Context, adminID uuid.UUID, claimID string, req *request.ClaimDecisionRequest) (*response.ClaimResponse, error)
	Close(ctx context.Context, adminID uuid.UUID, claimID string) (*response.ClaimResponse, error)

	// Scheduler
	AutoAcceptDue(ctx context.Context, limit int) (SweepResult, error)
	AutoRejectDue(ctx context.Context, limit int) (SweepResult, error)
}

type claimService struct {
	*core
	deposits *depositService
	log      *zap.Logger
}

func newClaimService(c *core, deposits *depositService, log *zap.Logger) *claimService {
	return &claimService{
		core:     c,
		deposits: deposits,
		log:      log.With(zap.String("service", "claim")),
	}
}

func (s *claimService) Create(ctx context.Context, hostID uuid.UUID, req *request.CreateClaimRequest) (*response.ClaimResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	bookingID, err := parseID("booking", req.BookingID)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, notFoundf("booking %s not found", req.BookingID)
	}
	if booking.HostID != hostID {
		return nil, forbiddenf("only the host can file a damage claim")
	}
	if !booking.CarRental {
		return nil, validationf("damage claims are only available for car rentals")
	}
	if err := checkClaimEvidence(req.AmountRequested, req.BeforePhotoURLs, req.AfterPhotoURLs, req.QuoteURL); err != nil {
		return nil, err
	}

	var claim *entity.DamageClaim
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		now := s.now()

		retour, err := repo.Inspection.FindByBookingAndType(ctx, bookingID, entity.InspectionTypeRetour)
		if err != nil {
			return err
		}
		if retour == nil || retour.Status != entity.InspectionStatusValidated || retour.ValidatedAt == nil {
			return conflictf("a VALIDATED RETOUR inspection is required to file a claim")
		}
		if now.Sub(*retour.ValidatedAt) > claimFilingWindow {
			return conflictf("claims must be filed within 24 hours of the return inspection")
		}

		// Locked first so the deposit auto-release cannot slip in between.
		deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if deposit == nil || deposit.IsResolved() {
			return conflictf("no caution deposit is held for this booking")
		}

		open, err := repo.Claim.FindNotClosedByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if open != nil {
			return conflictf("booking already has a %s claim", open.Status)
		}

		claim = &entity.DamageClaim{
			BookingID:       bookingID,
			HostID:          hostID,
			RenterID:        booking.GuestID,
			Category:        entity.ClaimCategory(req.Category),
			AmountRequested: utils.RoundMoney(req.AmountRequested),
			Currency:        deposit.Currency,
			Justification:   strings.TrimSpace(req.Justification),
			BeforePhotoURLs: req.BeforePhotoURLs,
			AfterPhotoURLs:  req.AfterPhotoURLs,
			QuoteURL:        req.QuoteURL,
			Status:          entity.ClaimStatusDraft,
		}
		claim.ID = uuid.New()
		claim.CreatedAt = now
		claim.UpdatedAt = now

		if err := repo.Claim.Create(ctx, claim); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: bookingID,
			eventType: entity.EventClaimCreated,
			actorID:   actor(hostID),
			payload: map[string]any{
				"claim_id": claim.ID.String(),
				"category": req.Category,
				"amount":   claim.AmountRequested,
			},
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Damage claim created",
		zap.String("claim_id", claim.ID.String()),
		zap.String("booking_id", req.BookingID),
		zap.Float64("amount", claim.AmountRequested),
	)

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

func checkClaimEvidence(amount float64, before, after []string, quoteURL *string) error {
	if len(before) == 0 || len(after) == 0 {
		return validationf("both before and after photos are required")
	}
	if amount > QuoteThreshold && (quoteURL == nil || strings.TrimSpace(*quoteURL) == "") {
		return validationf("a repair quote is required for claims above %.2f", QuoteThreshold)
	}
	return nil
}

// ClaimConfidence scores the evidence of a claim 0-100: photo sets, a quote
// and the length of the justification.
func ClaimConfidence(c *entity.DamageClaim) int {
	score := 0
	if len(c.BeforePhotoURLs) > 0 {
		score += 20
	}
	if len(c.AfterPhotoURLs) > 0 {
		score += 20
	}
	if c.QuoteURL != nil && *c.QuoteURL != "" {
		score += 30
	}
	score += int(math.Min(30, float64(len(c.Justification))*30/200))
	return score
}

func (s *claimService) Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, claimID string) (*response.ClaimResponse, error) {
	id, err := parseID("claim", claimID)
	if err != nil {
		return nil, err
	}

	claim, err := s.repo.Claim.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, notFoundf("claim %s not found", claimID)
	}
	if !isAdmin && claim.HostID != actorID && claim.RenterID != actorID {
		return nil, forbiddenf("you are not a party to this claim")
	}

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

func (s *claimService) Submit(ctx context.Context, hostID uuid.UUID, claimID string) (*response.ClaimResponse, error) {
	claim, err := s.mutate(ctx, claimID, func(repo *repository.Repository, claim *entity.DamageClaim) error {
		if claim.HostID != hostID {
			return forbiddenf("only the host can submit this claim")
		}
		if claim.Status != entity.ClaimStatusDraft {
			return conflictf("claim is %s, only DRAFT claims can be submitted", claim.Status)
		}
		if err := checkClaimEvidence(claim.AmountRequested, claim.BeforePhotoURLs, claim.AfterPhotoURLs, claim.QuoteURL); err != nil {
			return err
		}

		now := s.now()
		confidence := ClaimConfidence(claim)
		claim.ConfidenceScore = &confidence
		claim.Status = entity.ClaimStatusAwaitingRenterResponse
		claim.SubmittedAt = timePtr(now)
		claim.UpdatedAt = now
		if err := repo.Claim.Update(ctx, claim); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: claim.BookingID,
			eventType: entity.EventClaimSubmitted,
			actorID:   actor(hostID),
			payload: map[string]any{
				"claim_id":   claim.ID.String(),
				"confidence": confidence,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Notification{
		UserID: claim.RenterID,
		Type:   notify.TypeClaimFiled,
		Title:  "Damage claim filed",
		Body: fmt.Sprintf("The host filed a damage claim of %s. Please respond within 24 hours.",
			notify.FormatAmount("en", claim.AmountRequested, claim.Currency)),
		Data: map[string]any{"claim_id": claim.ID.String(), "booking_id": claim.BookingID.String()},
	})

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

func (s *claimService) RenterRespond(ctx context.Context, renterID uuid.UUID, claimID string, req *request.RenterResponseRequest) (*response.ClaimResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	claim, err := s.mutate(ctx, claimID, func(repo *repository.Repository, claim *entity.DamageClaim) error {
		if claim.RenterID != renterID {
			return forbiddenf("only the renter can respond to this claim")
		}
		if claim.Status != entity.ClaimStatusAwaitingRenterResponse {
			return conflictf("claim is %s, it is not awaiting a renter response", claim.Status)
		}

		now := s.now()
		answer := entity.RenterResponse(req.Response)
		claim.RenterResponse = &answer
		claim.RenterComment = req.Comment
		claim.RenterRespondedAt = timePtr(now)
		claim.Status = entity.ClaimStatusAwaitingAdminReview
		claim.UpdatedAt = now
		if err := repo.Claim.Update(ctx, claim); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: claim.BookingID,
			eventType: entity.EventClaimRenterResponded,
			actorID:   actor(renterID),
			payload: map[string]any{
				"claim_id": claim.ID.String(),
				"response": req.Response,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

// ==================== ADMIN METHODS ====================

func (s *claimService) Approve(ctx context.Context, adminID uuid.UUID, claimID string, req *request.ClaimDecisionRequest) (*response.ClaimResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	return s.decide(ctx, actor(adminID), claimID, decisionApprove, 0, req.Note)
}

func (s *claimService) Adjust(ctx context.Context, adminID uuid.UUID, claimID string, req *request.AdjustClaimRequest) (*response.ClaimResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	return s.decide(ctx, actor(adminID), claimID, decisionAdjust, req.Amount, req.Note)
}

func (s *claimService) Reject(ctx context.Context, adminID uuid.UUID, claimID string, req *request.ClaimDecisionRequest) (*response.ClaimResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	return s.decide(ctx, actor(adminID), claimID, decisionReject, 0, req.Note)
}

// decide applies a final decision. The claim and deposit stay locked while
// the gateway moves the money, so a decision is taken once. adminID is nil
// for the automatic rejection.
func (s *claimService) decide(ctx context.Context, adminID *uuid.UUID, claimID string, decision claimDecision, adjusted float64, note *string) (*response.ClaimResponse, error) {
	claim, err := s.mutate(ctx, claimID, func(repo *repository.Repository, claim *entity.DamageClaim) error {
		if claim.Status != entity.ClaimStatusAwaitingAdminReview {
			return conflictf("claim is %s, decisions are only possible from AWAITING_ADMIN_REVIEW", claim.Status)
		}

		deposit, err := repo.Deposit.FindByBookingIDForUpdate(ctx, claim.BookingID)
		if err != nil {
			return err
		}

		var (
			status  entity.ClaimStatus
			decided float64
		)
		reason := fmt.Sprintf("damage claim %s %s", claim.ID, decision)

		switch decision {
		case decisionApprove, decisionAdjust:
			if deposit == nil || deposit.IsResolved() {
				return conflictf("caution deposit is no longer held")
			}
			decided = math.Min(claim.AmountRequested, deposit.HoldAmount)
			status = entity.ClaimStatusAdminApproved
			if decision == decisionAdjust {
				decided = math.Min(adjusted, decided)
				status = entity.ClaimStatusAdminAdjusted
			}
			if err := s.deposits.captureLocked(ctx, repo, deposit, decided, adminID, reason); err != nil {
				return err
			}
		case decisionReject:
			status = entity.ClaimStatusAdminRejected
			if deposit != nil && !deposit.IsResolved() {
				if err := s.deposits.releaseLocked(ctx, repo, deposit, adminID, reason, adminID == nil); err != nil {
					return err
				}
			}
		}

		now := s.now()
		decided = utils.RoundMoney(decided)
		claim.Status = status
		claim.DecidedAmount = &decided
		claim.DecidedBy = adminID
		claim.DecidedAt = timePtr(now)
		claim.AdminNote = note
		claim.AutoDecided = adminID == nil
		claim.UpdatedAt = now
		if err := repo.Claim.Update(ctx, claim); err != nil {
			return err
		}

		eventType := entity.EventClaimDecided
		if adminID == nil {
			eventType = entity.EventClaimAutoRejected
		}
		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: claim.BookingID,
			eventType: eventType,
			actorID:   adminID,
			automatic: adminID == nil,
			payload: map[string]any{
				"claim_id": claim.ID.String(),
				"decision": string(decision),
				"status":   string(status),
				"amount":   decided,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range []uuid.UUID{claim.HostID, claim.RenterID} {
		s.notifier.Notify(ctx, notify.Notification{
			UserID: userID,
			Type:   notify.TypeClaimDecided,
			Title:  "Damage claim decided",
			Body:   fmt.Sprintf("The damage claim was %s.", strings.ToLower(strings.TrimPrefix(string(claim.Status), "ADMIN_"))),
			Data: map[string]any{
				"claim_id": claim.ID.String(),
				"amount":   claim.DecidedAmount,
			},
		})
	}

	s.log.Info("Damage claim decided",
		zap.String("claim_id", claim.ID.String()),
		zap.String("status", string(claim.Status)),
		zap.Bool("automatic", adminID == nil),
	)

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

func (s *claimService) Close(ctx context.Context, adminID uuid.UUID, claimID string) (*response.ClaimResponse, error) {
	claim, err := s.mutate(ctx, claimID, func(repo *repository.Repository, claim *entity.DamageClaim) error {
		if !claim.Status.IsDecided() {
			return conflictf("claim is %s, only decided claims can be closed", claim.Status)
		}

		now := s.now()
		claim.Status = entity.ClaimStatusClosed
		claim.ClosedAt = timePtr(now)
		claim.UpdatedAt = now
		if err := repo.Claim.Update(ctx, claim); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: claim.BookingID,
			eventType: entity.EventClaimClosed,
			actorID:   actor(adminID),
			payload:   map[string]any{"claim_id": claim.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	resp := response.ClaimToResponse(claim)
	return &resp, nil
}

func (s *claimService) mutate(ctx context.Context, claimID string, fn func(repo *repository.Repository, claim *entity.DamageClaim) error) (*entity.DamageClaim, error) {
	id, err := parseID("claim", claimID)
	if err != nil {
		return nil, err
	}

	var claim *entity.DamageClaim
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		claim, err = repo.Claim.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if claim == nil {
			return notFoundf("claim %s not found", claimID)
		}
		return fn(repo, claim)
	})
	if err != nil {
		return nil, txErr(err)
	}
	return claim, nil
}

// ==================== SCHEDULER ====================

// AutoAcceptDue treats renter silence past the response window as
// acceptance and hands the claim to the admins.
func (s *claimService) AutoAcceptDue(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	due, err := s.repo.Claim.FindAwaitingRenterSubmittedBefore(ctx, s.now().Add(-renterResponseWindow), limit)
	if err != nil {
		return result, err
	}
	result.Scanned = len(due)

	for _, c := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		accepted := false
		_, err := s.mutate(ctx, c.ID.String(), func(repo *repository.Repository, claim *entity.DamageClaim) error {
			if claim.Status != entity.ClaimStatusAwaitingRenterResponse {
				return nil
			}

			now := s.now()
			answer := entity.RenterResponseAccept
			claim.RenterResponse = &answer
			claim.AutoAccepted = true
			claim.RenterRespondedAt = timePtr(now)
			claim.Status = entity.ClaimStatusAwaitingAdminReview
			claim.UpdatedAt = now
			if err := repo.Claim.Update(ctx, claim); err != nil {
				return err
			}
			accepted = true

			return appendTimeline(ctx, repo, now, timelineEntry{
				bookingID: claim.BookingID,
				eventType: entity.EventClaimAutoAccepted,
				automatic: true,
				payload:   map[string]any{"claim_id": claim.ID.String()},
			})
		})
		if err != nil {
			result.Failed++
			s.log.Warn("Claim auto-accept failed", zap.Error(err), zap.String("claim_id", c.ID.String()))
			continue
		}
		if accepted {
			result.Processed++
		}
	}

	return result, nil
}

// AutoRejectDue rejects claims the admins left undecided past the review
// window and releases the deposit.
func (s *claimService) AutoRejectDue(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	due, err := s.repo.Claim.FindAwaitingAdminRespondedBefore(ctx, s.now().Add(-adminReviewWindow), limit)
	if err != nil {
		return result, err
	}
	result.Scanned = len(due)

	note := "no admin decision within 48 hours"
	for _, c := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.decide(ctx, nil, c.ID.String(), decisionReject, 0, &note); err != nil {
			result.Failed++
			s.log.Warn("Claim auto-reject failed", zap.Error(err), zap.String("claim_id", c.ID.String()))
			continue
		}
		result.Processed++
	}

	return result, nil
}
