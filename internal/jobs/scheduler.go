// Package jobs runs the periodic point resets and rank recomputes.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
)

const jobTimeout = 5 * time.Minute

// PointResetter clears one point bucket for every active user.
type PointResetter interface {
	Reset(ctx context.Context, bucket domain.PointBucket) (int64, error)
}

// RankRecomputer reassigns global ranks.
type RankRecomputer interface {
	RecomputeGlobalRanks(ctx context.Context) (app.RecomputeResult, error)
}

// Specs are cron expressions (minute resolution) for each job.
type Specs struct {
	DailyReset    string
	WeeklyReset   string
	MonthlyReset  string
	RankRecompute string
}

// Scheduler owns a gocron scheduler with the gamification jobs registered.
type Scheduler struct {
	sched  gocron.Scheduler
	points PointResetter
	ranks  RankRecomputer
	logger *slog.Logger
}

// New registers all jobs in loc; an invalid spec fails construction.
func New(specs Specs, loc *time.Location, points PointResetter, ranks RankRecomputer, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, points: points, ranks: ranks, logger: logger}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"reset-daily", specs.DailyReset, s.resetTask(domain.BucketDaily)},
		{"reset-weekly", specs.WeeklyReset, s.resetTask(domain.BucketWeekly)},
		{"reset-monthly", specs.MonthlyReset, s.resetTask(domain.BucketMonthly)},
		{"rank-recompute", specs.RankRecompute, s.recomputeTask},
	}
	for _, j := range jobs {
		_, err := sched.NewJob(
			gocron.CronJob(j.spec, false),
			gocron.NewTask(s.wrap(j.name, j.run)),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}
	return s, nil
}

// Jobs lists the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.sched.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	s.logger.Info("scheduler started", "jobs", s.Jobs())
	<-ctx.Done()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		started := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("scheduled job done", "job", name, "duration", time.Since(started))
	}
}

func (s *Scheduler) resetTask(bucket domain.PointBucket) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := s.points.Reset(ctx, bucket)
		if err != nil {
			return err
		}
		s.logger.Info("points reset", "bucket", bucket, "users", n)
		return nil
	}
}

func (s *Scheduler) recomputeTask(ctx context.Context) error {
	res, err := s.ranks.RecomputeGlobalRanks(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("ranks recomputed", "ranked", res.Ranked, "updated", res.Updated, "skipped", res.Skipped)
	return nil
}
