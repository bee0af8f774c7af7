package compiler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/observability"
)

// DefaultOrphanMaxAge is how old a sandbox container must be before the
// sweeper treats it as orphaned. It must exceed the longest job timeout.
const DefaultOrphanMaxAge = 10 * time.Minute

// Sweeper removes sandbox containers left behind when a cleanup call failed
// or the process died mid-job. It needs the container-list permission, which
// the per-request compiler does not.
type Sweeper struct {
	engine ContainerLister
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper creates a sweeper; maxAge <= 0 selects DefaultOrphanMaxAge
func NewSweeper(engine ContainerLister, maxAge time.Duration, logger *zap.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultOrphanMaxAge
	}
	return &Sweeper{
		engine: engine,
		maxAge: maxAge,
		logger: observability.OrNop(logger),
		now:    time.Now,
	}
}

// Sweep removes every managed container older than the max age and returns
// how many were removed. Individual removal failures are logged and joined
// into the returned error; the sweep continues past them.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	containers, err := s.engine.ListContainers(ctx, map[string]string{LabelManagedBy: ManagedByValue})
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	var errs []error
	for _, info := range containers {
		if info.Labels[LabelManagedBy] != ManagedByValue || info.Created.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := s.engine.RemoveContainer(ctx, info.ID); err != nil {
			s.logger.Error("failed to remove orphaned container",
				zap.String("container", info.ID),
				zap.String("job_id", info.Labels[LabelJobID]),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}

		removed++
		observability.OrphansRemoved.Inc()
		s.logger.Info("removed orphaned sandbox container",
			zap.String("container", info.ID),
			zap.String("name", info.Name),
			zap.String("state", info.State),
			zap.String("job_id", info.Labels[LabelJobID]),
			zap.Duration("age", s.now().Sub(info.Created)))
	}

	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("orphan sweep incomplete", zap.Error(err))
			}
		}
	}
}
