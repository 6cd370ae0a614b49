package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
)

func TestAddPointsBySource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")

	cases := []struct {
		source       domain.PointSource
		referral     int64
		subscription int64
	}{
		{domain.SourceQuiz, 0, 0},
		{domain.SourceReferral, 100, 0},
		{domain.SourceSubscription, 100, 100},
	}
	var total int64
	for _, tc := range cases {
		u, err := f.ledger.AddPoints(ctx, "u1", 100, tc.source)
		if err != nil {
			t.Fatalf("add %s: %v", tc.source, err)
		}
		total += 100
		if u.TotalPoints != total || u.DailyPoints != total || u.WeeklyPoints != total || u.MonthlyPoints != total {
			t.Fatalf("%s: expected all buckets at %d, got %+v", tc.source, total, u)
		}
		if u.ReferralPoints != tc.referral || u.SubscriptionPoints != tc.subscription {
			t.Fatalf("%s: unexpected source buckets %d/%d", tc.source, u.ReferralPoints, u.SubscriptionPoints)
		}
	}
}

func TestAddPointsRejectsInvalidGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")

	if _, err := f.ledger.AddPoints(ctx, "u1", -1, domain.SourceQuiz); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.ledger.AddPoints(ctx, "u1", 5, domain.PointSource("bonus")); !errors.Is(err, domain.ErrInvalidSource) {
		t.Fatalf("expected invalid source, got %v", err)
	}
	if _, err := f.ledger.AddPoints(ctx, "ghost", 5, domain.SourceQuiz); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected missing user, got %v", err)
	}
	u, _ := f.store.GetUser(ctx, "u1")
	if u.TotalPoints != 0 {
		t.Fatalf("rejected grants must not change points, got %d", u.TotalPoints)
	}
}

func TestAddPointsRecomputesLevel(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1")
	u, err := f.ledger.AddPoints(context.Background(), "u1", 2500, domain.SourceQuiz)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if u.Level != 3 || u.Experience != 0 {
		t.Fatalf("expected level 3 with no residual, got %d/%d", u.Level, u.Experience)
	}
}

func TestResetsClearOnlyTheirBucket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")
	_, _ = f.ledger.AddPoints(ctx, "u1", 70, domain.SourceQuiz)

	steps := []struct {
		name  string
		reset func(context.Context) (int64, error)
		check func(domain.User) bool
	}{
		{"daily", f.ledger.ResetDaily, func(u domain.User) bool { return u.DailyPoints == 0 && u.WeeklyPoints == 70 }},
		{"weekly", f.ledger.ResetWeekly, func(u domain.User) bool { return u.WeeklyPoints == 0 && u.MonthlyPoints == 70 }},
		{"monthly", f.ledger.ResetMonthly, func(u domain.User) bool { return u.MonthlyPoints == 0 }},
	}
	for _, step := range steps {
		n, err := step.reset(ctx)
		if err != nil || n != 1 {
			t.Fatalf("%s reset: n=%d err=%v", step.name, n, err)
		}
		u, _ := f.store.GetUser(ctx, "u1")
		if !step.check(u) || u.TotalPoints != 70 {
			t.Fatalf("%s reset left unexpected counters %+v", step.name, u)
		}
	}

	if _, err := f.ledger.Reset(ctx, domain.PointBucket("yearly")); err == nil {
		t.Fatalf("expected unknown bucket to fail")
	}
}

func TestSubscriptionRewardOncePerChannel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")
	subs := app.NewSubscriptionService(f.store, f.store, app.WithClock(f.clock.Now))
	if _, err := subs.RegisterChannel(ctx, app.ChannelDraft{ID: "c1", Username: "@quiz", Title: "Quiz News"}); err != nil {
		t.Fatalf("register channel: %v", err)
	}

	earned, err := subs.RecordSubscription(ctx, "u1", "c1")
	if err != nil || earned != domain.DefaultChannelReward {
		t.Fatalf("expected default reward, got %d (%v)", earned, err)
	}
	earned, err = subs.RecordSubscription(ctx, "u1", "c1")
	if err != nil || earned != 0 {
		t.Fatalf("expected no second reward, got %d (%v)", earned, err)
	}
	u, _ := f.store.GetUser(ctx, "u1")
	if u.SubscriptionPoints != 100 || u.TotalPoints != 100 || len(u.Subscriptions) != 1 {
		t.Fatalf("unexpected subscription state %+v", u)
	}
	if u.Subscriptions[0].ChannelUsername != "quiz" {
		t.Fatalf("expected registry username on the subscription, got %+v", u.Subscriptions[0])
	}
}

func TestSubscriptionRewardComesFromRegistry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")
	subs := app.NewSubscriptionService(f.store, f.store, app.WithClock(f.clock.Now))

	reward := int64(250)
	if _, err := subs.RegisterChannel(ctx, app.ChannelDraft{ID: "c1", Reward: &reward}); err != nil {
		t.Fatalf("register channel: %v", err)
	}
	retired := domain.NewChannel("c2", "old", "Old", f.clock.Now())
	retired.IsActive = false
	if err := f.store.CreateChannel(ctx, retired); err != nil {
		t.Fatalf("create retired channel: %v", err)
	}

	if earned, err := subs.RecordSubscription(ctx, "u1", "c1"); err != nil || earned != 250 {
		t.Fatalf("expected the registered reward, got %d (%v)", earned, err)
	}
	for _, id := range []string{"c2", "unknown"} {
		if _, err := subs.RecordSubscription(ctx, "u1", id); !errors.Is(err, domain.ErrChannelNotFound) {
			t.Fatalf("expected channel not found for %s, got %v", id, err)
		}
	}
	u, _ := f.store.GetUser(ctx, "u1")
	if u.TotalPoints != 250 || len(u.Subscriptions) != 1 {
		t.Fatalf("only the registered channel may pay out, got %+v", u)
	}

	negative := int64(-5)
	if _, err := subs.RegisterChannel(ctx, app.ChannelDraft{ID: "c3", Reward: &negative}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := subs.RegisterChannel(ctx, app.ChannelDraft{ID: "c1"}); !errors.Is(err, domain.ErrChannelExists) {
		t.Fatalf("expected channel exists, got %v", err)
	}
	active, _ := subs.Channels(ctx)
	if len(active) != 1 || active[0].ID != "c1" {
		t.Fatalf("expected only the active channel listed, got %+v", active)
	}
}
