package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

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

type InspectionService interface {
	Create(ctx context.Context, actorID uuid.UUID, req *request.CreateInspectionRequest) (*response.InspectionResponse, error)
	Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, inspectionID string) (*response.InspectionResponse, error)
	Update(ctx context.Context, actorID uuid.UUID, inspectionID string, req *request.UpdateInspectionRequest) (*response.InspectionResponse, error)
	Submit(ctx context.Context, actorID uuid.UUID, inspectionID string) (*response.InspectionResponse, error)
	Validate(ctx context.Context, actorID uuid.UUID, inspectionID string) (*response.InspectionResponse, error)
	Contest(ctx context.Context, actorID uuid.UUID, inspectionID string, req *request.ContestInspectionRequest) (*response.InspectionResponse, error)

	// Scheduler
	AutoValidateDue(ctx context.Context, limit int) (SweepResult, error)
}

type inspectionService struct {
	*core
	log *zap.Logger
}

func newInspectionService(c *core, log *zap.Logger) *inspectionService {
	return &inspectionService{
		core: c,
		log:  log.With(zap.String("service", "inspection")),
	}
}

func (s *inspectionService) Create(ctx context.Context, actorID uuid.UUID, req *request.CreateInspectionRequest) (*response.InspectionResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}
	bookingID, err := parseID("booking", req.BookingID)
	if err != nil {
		return nil, err
	}
	inspectionType := entity.InspectionType(req.Type)
	mode := entity.InspectionMode(req.Mode)

	var inspection *entity.Inspection
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		booking, err := repo.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return notFoundf("booking %s not found", req.BookingID)
		}
		if !booking.CarRental {
			return validationf("inspections are only available for car rentals")
		}

		role, delegated, err := creatorRole(booking, actorID, mode)
		if err != nil {
			return err
		}
		if err := s.checkCreatable(ctx, repo, booking, inspectionType); err != nil {
			return err
		}

		now := s.now()
		inspection = &entity.Inspection{
			BookingID:   booking.ID,
			Type:        inspectionType,
			Mode:        mode,
			CreatorRole: role,
			CreatorID:   actorID,
			Delegated:   delegated,
			Items:       []entity.InspectionItem{},
			Status:      entity.InspectionStatusDraft,
			Metadata:    map[string]any{},
		}
		inspection.ID = uuid.New()
		inspection.CreatedAt = now
		inspection.UpdatedAt = now

		if err := repo.Inspection.Create(ctx, inspection); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: booking.ID,
			eventType: entity.EventInspectionCreated,
			actorID:   actor(actorID),
			payload: map[string]any{
				"inspection_id": inspection.ID.String(),
				"type":          string(inspectionType),
				"mode":          string(mode),
				"delegated":     delegated,
			},
		})
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.log.Info("Inspection created",
		zap.String("inspection_id", inspection.ID.String()),
		zap.String("booking_id", req.BookingID),
		zap.String("type", req.Type),
	)

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

// creatorRole applies the creation matrix: the host inspects in STANDARD
// mode, the renter in KEY_BOX mode on the host's behalf.
func creatorRole(booking *entity.Booking, actorID uuid.UUID, mode entity.InspectionMode) (entity.InspectionRole, bool, error) {
	switch mode {
	case entity.InspectionModeStandard:
		if actorID != booking.HostID {
			return "", false, forbiddenf("only the host can create a STANDARD inspection")
		}
		return entity.InspectionRoleHost, false, nil
	case entity.InspectionModeKeyBox:
		if actorID != booking.GuestID {
			return "", false, forbiddenf("only the renter can create a KEY_BOX inspection")
		}
		return entity.InspectionRoleRenter, true, nil
	}
	return "", false, validationf("unknown inspection mode %s", mode)
}

func (s *inspectionService) checkCreatable(ctx context.Context, repo *repository.Repository, booking *entity.Booking, inspectionType entity.InspectionType) error {
	existing, err := repo.Inspection.FindByBookingAndType(ctx, booking.ID, inspectionType)
	if err != nil {
		return err
	}
	if existing != nil {
		return conflictf("a %s inspection already exists for this booking", inspectionType)
	}

	switch inspectionType {
	case entity.InspectionTypeDepart:
		if booking.Status != entity.BookingStatusConfirmed {
			return conflictf("DEPART inspection requires a CONFIRMED booking, booking is %s", booking.Status)
		}
	case entity.InspectionTypeRetour:
		if booking.Status != entity.BookingStatusInProgress {
			return conflictf("RETOUR inspection requires an IN_PROGRESS booking, booking is %s", booking.Status)
		}
		depart, err := repo.Inspection.FindByBookingAndType(ctx, booking.ID, entity.InspectionTypeDepart)
		if err != nil {
			return err
		}
		if depart == nil || depart.Status != entity.InspectionStatusValidated {
			return conflictf("RETOUR inspection requires a VALIDATED DEPART inspection")
		}
	}
	return nil
}

func (s *inspectionService) Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, inspectionID string) (*response.InspectionResponse, error) {
	id, err := parseID("inspection", inspectionID)
	if err != nil {
		return nil, err
	}

	inspection, err := s.repo.Inspection.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inspection == nil {
		return nil, notFoundf("inspection %s not found", inspectionID)
	}

	if !isAdmin {
		booking, err := s.repo.Booking.FindByID(ctx, inspection.BookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil || !booking.IsParty(actorID) {
			return nil, forbiddenf("you are not a party to this booking")
		}
	}

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

func (s *inspectionService) Update(ctx context.Context, actorID uuid.UUID, inspectionID string, req *request.UpdateInspectionRequest) (*response.InspectionResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	inspection, err := s.mutate(ctx, inspectionID, func(repo *repository.Repository, inspection *entity.Inspection, _ *entity.Booking) error {
		if inspection.CreatorID != actorID {
			return forbiddenf("only the creator can edit this inspection")
		}
		if inspection.Status != entity.InspectionStatusDraft {
			return conflictf("inspection is %s, only DRAFT inspections can be edited", inspection.Status)
		}

		if len(req.Items) > 0 {
			inspection.Items = toInspectionItems(req.Items)
		}
		if req.Mileage != nil {
			inspection.Mileage = req.Mileage
		}
		if req.EnergyLevel != nil {
			inspection.EnergyLevel = req.EnergyLevel
		}
		if req.DocumentsPresent != nil {
			inspection.DocumentsPresent = req.DocumentsPresent
		}
		if req.Accessories != nil {
			inspection.Accessories = req.Accessories
		}
		inspection.UpdatedAt = s.now()
		return repo.Inspection.Update(ctx, inspection)
	})
	if err != nil {
		return nil, err
	}

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

func toInspectionItems(reqs []request.InspectionItemRequest) []entity.InspectionItem {
	items := make([]entity.InspectionItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, entity.InspectionItem{
			Code:            strings.ToUpper(strings.TrimSpace(r.Code)),
			Condition:       entity.ItemCondition(r.Condition),
			ConditionNote:   strings.TrimSpace(r.ConditionNote),
			Cleanliness:     entity.Cleanliness(r.Cleanliness),
			CleanlinessNote: strings.TrimSpace(r.CleanlinessNote),
			PhotoURL:        strings.TrimSpace(r.PhotoURL),
			Latitude:        r.Latitude,
			Longitude:       r.Longitude,
		})
	}
	return items
}

func (s *inspectionService) Submit(ctx context.Context, actorID uuid.UUID, inspectionID string) (*response.InspectionResponse, error) {
	var counterparty uuid.UUID
	inspection, err := s.mutate(ctx, inspectionID, func(repo *repository.Repository, inspection *entity.Inspection, booking *entity.Booking) error {
		if inspection.CreatorID != actorID {
			return forbiddenf("only the creator can submit this inspection")
		}
		if inspection.Status != entity.InspectionStatusDraft {
			return conflictf("inspection is %s, only DRAFT inspections can be submitted", inspection.Status)
		}
		if err := CheckSubmittable(inspection); err != nil {
			return err
		}

		now := s.now()
		inspection.Status = entity.InspectionStatusSubmitted
		inspection.SubmittedAt = timePtr(now)
		inspection.UpdatedAt = now
		if err := repo.Inspection.Update(ctx, inspection); err != nil {
			return err
		}

		counterparty = booking.GuestID
		if inspection.CreatorRole == entity.InspectionRoleRenter {
			counterparty = booking.HostID
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: inspection.BookingID,
			eventType: entity.EventInspectionSubmitted,
			actorID:   actor(actorID),
			payload: map[string]any{
				"inspection_id": inspection.ID.String(),
				"type":          string(inspection.Type),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Notification{
		UserID: counterparty,
		Type:   notify.TypeInspectionReady,
		Title:  "Inspection ready for review",
		Body:   fmt.Sprintf("The %s inspection is waiting for your validation.", strings.ToLower(string(inspection.Type))),
		Data: map[string]any{
			"inspection_id": inspection.ID.String(),
			"booking_id":    inspection.BookingID.String(),
		},
	})

	s.log.Info("Inspection submitted",
		zap.String("inspection_id", inspection.ID.String()),
		zap.String("booking_id", inspection.BookingID.String()),
	)

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

// CheckSubmittable verifies that every checklist item and vehicle field is
// filled. The error names each offending item.
func CheckSubmittable(i *entity.Inspection) error {
	known := make(map[string]bool, len(entity.CarChecklistCodes))
	for _, code := range entity.CarChecklistCodes {
		known[code] = true
	}

	var problems []string
	seen := make(map[string]bool, len(i.Items))
	for _, item := range i.Items {
		switch {
		case !known[item.Code]:
			problems = append(problems, fmt.Sprintf("item %s: unknown checklist code", item.Code))
			continue
		case seen[item.Code]:
			problems = append(problems, fmt.Sprintf("item %s: duplicate entry", item.Code))
			continue
		}
		seen[item.Code] = true

		if item.Condition != entity.ConditionOK && item.ConditionNote == "" {
			problems = append(problems, fmt.Sprintf("item %s: condition note is required when condition is %s", item.Code, item.Condition))
		}
		if item.Cleanliness.NeedsNote() && item.CleanlinessNote == "" {
			problems = append(problems, fmt.Sprintf("item %s: cleanliness note is required when cleanliness is %s", item.Code, item.Cleanliness))
		}
		if item.PhotoURL == "" {
			problems = append(problems, fmt.Sprintf("item %s: photo is required", item.Code))
		}
	}

	var missing []string
	for _, code := range entity.CarChecklistCodes {
		if !seen[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		problems = append(problems, "missing checklist items: "+strings.Join(missing, ", "))
	}

	if i.Mileage == nil {
		problems = append(problems, "mileage is required")
	}
	if i.EnergyLevel == nil {
		problems = append(problems, "energy level is required")
	} else if *i.EnergyLevel < 0 || *i.EnergyLevel > 100 {
		problems = append(problems, "energy level must be between 0 and 100")
	}
	if i.DocumentsPresent == nil {
		problems = append(problems, "documents present is required")
	}
	if len(i.Accessories) == 0 {
		problems = append(problems, "accessories checklist is required")
	}

	if len(problems) > 0 {
		return validationf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *inspectionService) Validate(ctx context.Context, actorID uuid.UUID, inspectionID string) (*response.InspectionResponse, error) {
	inspection, err := s.mutate(ctx, inspectionID, func(repo *repository.Repository, inspection *entity.Inspection, booking *entity.Booking) error {
		if inspection.Status != entity.InspectionStatusSubmitted {
			return conflictf("inspection is %s, only SUBMITTED inspections can be validated", inspection.Status)
		}
		if !isCounterparty(inspection, booking, actorID) {
			return forbiddenf("only the other party can validate this inspection")
		}
		return s.validateLocked(ctx, repo, inspection, booking, actor(actorID))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Inspection validated",
		zap.String("inspection_id", inspection.ID.String()),
		zap.String("validator_id", actorID.String()),
	)

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

func isCounterparty(i *entity.Inspection, booking *entity.Booking, actorID uuid.UUID) bool {
	if actorID == i.CreatorID {
		return false
	}
	if i.CreatorRole == entity.InspectionRoleHost {
		return actorID == booking.GuestID
	}
	return actorID == booking.HostID
}

// validateLocked seals an inspection: mileage check, content hash and
// quality score. validatorID is nil for automatic validation.
func (s *inspectionService) validateLocked(ctx context.Context, repo *repository.Repository, i *entity.Inspection, booking *entity.Booking, validatorID *uuid.UUID) error {
	if i.Metadata == nil {
		i.Metadata = map[string]any{}
	}

	reference := booking.StartAt
	if i.Type == entity.InspectionTypeRetour {
		reference = booking.EndAt

		depart, err := repo.Inspection.FindByBookingAndType(ctx, booking.ID, entity.InspectionTypeDepart)
		if err != nil {
			return err
		}
		if depart != nil && depart.Mileage != nil && i.Mileage != nil && *i.Mileage < *depart.Mileage {
			i.Metadata["mileageInconsistency"] = map[string]any{
				"depart_mileage": *depart.Mileage,
				"retour_mileage": *i.Mileage,
			}
			s.log.Warn("Return mileage lower than departure",
				zap.String("booking_id", booking.ID.String()),
				zap.Int("depart", *depart.Mileage),
				zap.Int("retour", *i.Mileage),
			)
		}
	}

	hostRejected, err := repo.Claim.CountRejectedByHost(ctx, booking.HostID)
	if err != nil {
		return err
	}
	renterUpheld, err := repo.Claim.CountUpheldAgainstRenter(ctx, booking.GuestID)
	if err != nil {
		return err
	}

	now := s.now()
	score := ScoreInspection(i, reference, hostRejected, renterUpheld)
	hash := ComputeContentHash(i)

	i.Status = entity.InspectionStatusValidated
	i.ContentHash = &hash
	i.Score = &score
	i.ValidatedAt = timePtr(now)
	i.ValidatedBy = validatorID
	i.AutoValidated = validatorID == nil
	i.UpdatedAt = now
	if err := repo.Inspection.Update(ctx, i); err != nil {
		return err
	}

	eventType := entity.EventInspectionValidated
	if validatorID == nil {
		eventType = entity.EventInspectionAutoValidated
	}
	return appendTimeline(ctx, repo, now, timelineEntry{
		bookingID: i.BookingID,
		eventType: eventType,
		actorID:   validatorID,
		automatic: validatorID == nil,
		payload: map[string]any{
			"inspection_id": i.ID.String(),
			"type":          string(i.Type),
			"content_hash":  hash,
			"overall_score": score.Overall,
		},
	})
}

func (s *inspectionService) Contest(ctx context.Context, actorID uuid.UUID, inspectionID string, req *request.ContestInspectionRequest) (*response.InspectionResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationf("%s", utils.FormatValidationErrors(errs))
	}

	inspection, err := s.mutate(ctx, inspectionID, func(repo *repository.Repository, inspection *entity.Inspection, booking *entity.Booking) error {
		if inspection.CreatorID == actorID {
			return forbiddenf("the creator cannot contest their own inspection")
		}
		if !booking.IsParty(actorID) {
			return forbiddenf("you are not a party to this booking")
		}
		if inspection.Status != entity.InspectionStatusSubmitted {
			return conflictf("inspection is %s, only SUBMITTED inspections can be contested", inspection.Status)
		}

		now := s.now()
		inspection.Status = entity.InspectionStatusContested
		inspection.ContestReason = strPtr(req.Reason)
		inspection.UpdatedAt = now
		if err := repo.Inspection.Update(ctx, inspection); err != nil {
			return err
		}

		return appendTimeline(ctx, repo, now, timelineEntry{
			bookingID: inspection.BookingID,
			eventType: entity.EventInspectionContested,
			actorID:   actor(actorID),
			payload: map[string]any{
				"inspection_id": inspection.ID.String(),
				"reason":        req.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Inspection contested",
		zap.String("inspection_id", inspection.ID.String()),
		zap.String("actor_id", actorID.String()),
	)

	resp := response.InspectionToResponse(inspection)
	return &resp, nil
}

// mutate locks an inspection and its booking and runs fn in one transaction.
func (s *inspectionService) mutate(ctx context.Context, inspectionID string, fn func(repo *repository.Repository, i *entity.Inspection, b *entity.Booking) error) (*entity.Inspection, error) {
	id, err := parseID("inspection", inspectionID)
	if err != nil {
		return nil, err
	}

	var inspection *entity.Inspection
	err = s.repo.Tx.WithinTx(ctx, pgx.ReadCommitted, func(repo *repository.Repository) error {
		inspection, err = repo.Inspection.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inspection == nil {
			return notFoundf("inspection %s not found", inspectionID)
		}

		booking, err := repo.Booking.FindByID(ctx, inspection.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return notFoundf("booking %s not found", inspection.BookingID)
		}
		return fn(repo, inspection, booking)
	})
	if err != nil {
		return nil, txErr(err)
	}
	return inspection, nil
}

// ==================== SCHEDULER ====================

// AutoValidateDue validates SUBMITTED inspections whose counter-party stayed
// silent past the inspection's timer.
func (s *inspectionService) AutoValidateDue(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	candidates, err := s.repo.Inspection.FindDueForAutoValidation(ctx, now, limit)
	if err != nil {
		return result, err
	}

	for _, candidate := range candidates {
		if candidate.SubmittedAt == nil || now.Before(candidate.SubmittedAt.Add(candidate.AutoValidateAfter())) {
			continue
		}
		result.Scanned++
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		validated, err := s.autoValidate(ctx, candidate.ID)
		if err != nil {
			result.Failed++
			s.log.Warn("Inspection auto-validation failed",
				zap.Error(err),
				zap.String("inspection_id", candidate.ID.String()),
			)
			continue
		}
		if validated {
			result.Processed++
		}
	}

	return result, nil
}

func (s *inspectionService) autoValidate(ctx context.Context, inspectionID uuid.UUID) (bool, error) {
	validated := false
	_, err := s.mutate(ctx, inspectionID.String(), func(repo *repository.Repository, i *entity.Inspection, b *entity.Booking) error {
		// Re-checked under the row lock; a manual decision may have won.
		if i.Status != entity.InspectionStatusSubmitted {
			return nil
		}
		if err := s.validateLocked(ctx, repo, i, b, nil); err != nil {
			return err
		}
		validated = true
		return nil
	})
	return validated, err
}
