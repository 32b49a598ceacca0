package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one periodic sweep. Run must be safe to repeat: every item it
// touches is guarded by a one-shot flag or a conditional status update.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker is a cross-instance lease. cache.Lease implements it.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// Runner ticks every registered job on its own interval until the context
// is cancelled. A tick is skipped while the previous run of the same job is
// still going, or while another instance holds the job's lease.
type Runner struct {
	jobs   []Job
	locker Locker
	log    *zap.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner builds a runner. locker may be nil for single-instance setups.
func NewRunner(locker Locker, log *zap.Logger) *Runner {
	return &Runner{
		locker:  locker,
		log:     log.With(zap.String("component", "scheduler")),
		tracer:  otel.Tracer("vehicle-rental/scheduler"),
		running: make(map[string]bool),
	}
}

func (r *Runner) Register(jobs ...Job) {
	for _, job := range jobs {
		if job.Interval <= 0 {
			r.log.Warn("Job disabled, interval is not positive", zap.String("job", job.Name))
			continue
		}
		r.jobs = append(r.jobs, job)
	}
}

// Run blocks until ctx is done and every job loop has returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		job := job
		g.Go(func() error {
			r.loop(ctx, job)
			return nil
		})
	}

	r.log.Info("Scheduler started", zap.Int("jobs", len(r.jobs)))
	err := g.Wait()
	r.log.Info("Scheduler stopped")
	return err
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("Job run failed", zap.Error(err), zap.String("job", job.Name))
			}
		}
	}
}

// RunOnce executes job now unless a run is already in flight here or
// elsewhere. ran reports whether the job body executed.
func (r *Runner) RunOnce(ctx context.Context, job Job) (ran bool, err error) {
	if !r.begin(job.Name) {
		r.log.Debug("Job still running, tick skipped", zap.String("job", job.Name))
		return false, nil
	}
	defer r.finish(job.Name)

	if r.locker != nil {
		release, ok, err := r.locker.Acquire(ctx, job.Name, job.Interval)
		if err != nil {
			return false, err
		}
		if !ok {
			r.log.Debug("Job lease held elsewhere, tick skipped", zap.String("job", job.Name))
			return false, nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	ctx, span := r.tracer.Start(ctx, "scheduler."+job.Name, trace.WithAttributes(attribute.String("job", job.Name)))
	defer span.End()

	start := time.Now()
	err = job.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.log.Debug("Job finished",
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return true, err
}

func (r *Runner) begin(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) finish(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}
