package scheduler

import (
	"context"
	"errors"

	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/utils"

	"go.uber.org/zap"
)

// sweepLimit bounds how many rows one sweep step claims.
const sweepLimit = 100

type sweep struct {
	name string
	run  func(ctx context.Context, limit int) (usecase.SweepResult, error)
}

// Jobs builds the periodic jobs from the service layer. relay may be nil
// when no broker is configured.
func Jobs(svc *usecase.Service, relay *TimelineRelay, cfg utils.SchedulerConfig, log *zap.Logger) []Job {
	jobs := []Job{
		{
			Name:     "booking-expiry",
			Interval: cfg.BookingExpiry,
			Run: runSweeps(log,
				sweep{"expire-pending-approvals", svc.Booking.ExpirePendingApprovals},
			),
		},
		{
			// Order matters: a return validated in this tick can release its
			// deposit in the same tick once the release window has passed.
			Name:     "inspection-workflow",
			Interval: cfg.InspectionWorkflow,
			Run: runSweeps(log,
				sweep{"auto-validate-inspections", svc.Inspection.AutoValidateDue},
				sweep{"auto-release-deposits", svc.Deposit.AutoReleaseDue},
				sweep{"auto-accept-claims", svc.Claim.AutoAcceptDue},
				sweep{"auto-reject-claims", svc.Claim.AutoRejectDue},
			),
		},
		{
			Name:     "settlement",
			Interval: cfg.Settlement,
			Run: runSweeps(log,
				sweep{"process-due-payouts", svc.Payout.ProcessDue},
			),
		},
	}
	if relay != nil {
		jobs = append(jobs, Job{
			Name:     "timeline-relay",
			Interval: cfg.TimelineRelay,
			Run:      relay.RelayOnce,
		})
	}
	return jobs
}

// runSweeps runs every step even when an earlier one fails; the errors are
// joined so the runner logs them once.
func runSweeps(log *zap.Logger, sweeps ...sweep) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		for _, s := range sweeps {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res, err := s.run(ctx, sweepLimit)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if res.Scanned > 0 {
				log.Info("Sweep completed",
					zap.String("sweep", s.name),
					zap.Int("scanned", res.Scanned),
					zap.Int("processed", res.Processed),
					zap.Int("failed", res.Failed),
				)
			}
		}
		return errors.Join(errs...)
	}
}
