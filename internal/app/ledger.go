package app

import (
	"context"
	"fmt"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

// Ledger applies point grants and periodic bucket resets.
type Ledger struct {
	users UserRepository
	settings
}

func NewLedger(users UserRepository, opts ...Option) *Ledger {
	return &Ledger{users: users, settings: newSettings(opts)}
}

// AddPoints grants amount points from source to userID in one atomic update.
func (l *Ledger) AddPoints(ctx context.Context, userID string, amount int64, source domain.PointSource) (domain.User, error) {
	if err := validateGrant(amount, source); err != nil {
		return domain.User{}, err
	}
	user, err := l.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		applyPoints(u, amount, source)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	l.logger.Debug("points added", "user_id", userID, "amount", amount, "source", source)
	return user, nil
}

func (l *Ledger) ResetDaily(ctx context.Context) (int64, error) {
	return l.reset(ctx, domain.BucketDaily)
}

func (l *Ledger) ResetWeekly(ctx context.Context) (int64, error) {
	return l.reset(ctx, domain.BucketWeekly)
}

func (l *Ledger) ResetMonthly(ctx context.Context) (int64, error) {
	return l.reset(ctx, domain.BucketMonthly)
}

// Reset zeroes the named bucket for every active user.
func (l *Ledger) Reset(ctx context.Context, bucket domain.PointBucket) (int64, error) {
	switch bucket {
	case domain.BucketDaily, domain.BucketWeekly, domain.BucketMonthly:
		return l.reset(ctx, bucket)
	}
	return 0, fmt.Errorf("unknown point bucket %q", bucket)
}

func (l *Ledger) reset(ctx context.Context, bucket domain.PointBucket) (int64, error) {
	n, err := l.users.ResetPoints(ctx, bucket)
	if err != nil {
		return 0, fmt.Errorf("reset %s points: %w", bucket, err)
	}
	l.logger.Info("points reset", "bucket", bucket, "users", n)
	return n, nil
}

func validateGrant(amount int64, source domain.PointSource) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	if !source.Valid() {
		return domain.ErrInvalidSource
	}
	return nil
}

// applyPoints adds amount to every bucket the source feeds and re-derives the level.
// Callers validate the grant first.
func applyPoints(u *domain.User, amount int64, source domain.PointSource) {
	u.TotalPoints += amount
	u.MonthlyPoints += amount
	u.WeeklyPoints += amount
	u.DailyPoints += amount
	switch source {
	case domain.SourceReferral:
		u.ReferralPoints += amount
	case domain.SourceSubscription:
		u.SubscriptionPoints += amount
	}
	lvl := gamification.ComputeLevel(u.TotalPoints)
	u.Level = lvl.Level
	u.Experience = lvl.Experience
}
