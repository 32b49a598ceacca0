package usecase

import (
	"time"

	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	Booking    BookingService
	Payment    PaymentService
	Deposit    DepositService
	Inspection InspectionService
	Claim      ClaimService
	Payout     PayoutService
}

// core is shared by every service: storage, the external ports and a clock.
type core struct {
	repo     *repository.Repository
	gateway  gateway.Gateway
	catalog  Catalog
	notifier notify.Dispatcher
	now      func() time.Time
}

func NewService(
	repo *repository.Repository,
	gw gateway.Gateway,
	catalog Catalog,
	notifier notify.Dispatcher,
	log *zap.Logger,
) *Service {
	c := &core{
		repo:     repo,
		gateway:  gw,
		catalog:  catalog,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	return newService(c, log)
}

func newService(c *core, log *zap.Logger) *Service {
	payouts := newPayoutService(c, log)
	deposits := newDepositService(c, log)

	return &Service{
		Booking:    newBookingService(c, payouts, deposits, log),
		Payment:    newPaymentService(c, payouts, deposits, log),
		Deposit:    deposits,
		Inspection: newInspectionService(c, log),
		Claim:      newClaimService(c, deposits, log),
		Payout:     payouts,
	}
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, validationf("invalid %s ID format %s", kind, raw)
	}
	return id, nil
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
