package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
)

func TestRankingCacheStoresAndReplaces(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	cache := NewRankingCache(client, time.Hour)
	updated := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	first := domain.Ranking{
		Timeframe: domain.TimeframeAllTime,
		Total:     7,
		UpdatedAt: updated,
		Entries: []domain.Standing{
			{Rank: 1, UserID: "b", Points: 900, LevelTitle: "Beginner"},
			{Rank: 2, UserID: "a", Points: 500},
			{Rank: 3, UserID: "c", Points: 10},
		},
	}
	if err := cache.StoreRanking(ctx, first); err != nil {
		t.Fatalf("store: %v", err)
	}

	top, err := cache.Top(ctx, domain.TimeframeAllTime, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top.Entries) != 2 || top.Entries[0].UserID != "b" || top.Entries[1].UserID != "a" {
		t.Fatalf("unexpected top entries %+v", top.Entries)
	}
	if top.Entries[0].LevelTitle != "Beginner" || !top.UpdatedAt.Equal(updated) || top.Total != 7 {
		t.Fatalf("standing details lost: %+v", top)
	}

	second := domain.Ranking{
		Timeframe: domain.TimeframeAllTime,
		UpdatedAt: updated.Add(time.Minute),
		Entries:   []domain.Standing{{Rank: 1, UserID: "a", Points: 1000}},
	}
	if err := cache.StoreRanking(ctx, second); err != nil {
		t.Fatalf("store again: %v", err)
	}
	top, _ = cache.Top(ctx, domain.TimeframeAllTime, 10)
	if len(top.Entries) != 1 || top.Entries[0].UserID != "a" {
		t.Fatalf("expected stale members removed, got %+v", top.Entries)
	}

	version, err := cache.Version(ctx, domain.TimeframeAllTime)
	if err != nil || version != 2 {
		t.Fatalf("expected version 2, got %d (%v)", version, err)
	}
}

func TestRankingCacheEmptyTimeframe(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	cache := NewRankingCache(client, 0)

	top, err := cache.Top(ctx, domain.TimeframeWeekly, 10)
	if err != nil || len(top.Entries) != 0 {
		t.Fatalf("expected empty ranking, got %+v (%v)", top, err)
	}
	if v, _ := cache.Version(ctx, domain.TimeframeWeekly); v != 0 {
		t.Fatalf("expected version 0, got %d", v)
	}
}

func TestRankingCacheExpiresAsAWhole(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	cache := NewRankingCache(client, 10*time.Minute)
	ranking := domain.Ranking{
		Timeframe: domain.TimeframeAllTime,
		Total:     1,
		UpdatedAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		Entries:   []domain.Standing{{Rank: 1, UserID: "a"}},
	}
	if err := cache.StoreRanking(ctx, ranking); err != nil {
		t.Fatalf("store: %v", err)
	}
	mr.FastForward(11 * time.Minute)

	if v, err := cache.Version(ctx, domain.TimeframeAllTime); err != nil || v != 0 {
		t.Fatalf("expected expired ranking to report version 0, got %d (%v)", v, err)
	}
	if err := cache.StoreRanking(ctx, ranking); err != nil {
		t.Fatalf("store again: %v", err)
	}
	if v, _ := cache.Version(ctx, domain.TimeframeAllTime); v != 2 {
		t.Fatalf("expected version to keep growing across expiry, got %d", v)
	}
}

// seedRanked creates n active users where u1 has the most points.
func seedRanked(t *testing.T, n int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		u := domain.NewUser(fmt.Sprintf("u%d", i), "", "", now)
		u.TotalPoints = int64(1000 - i)
		if err := store.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	return store
}

func TestLeaderboardPagesPastCachedSlice(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	store := seedRanked(t, 5)
	cfg := app.RankConfig{PublishLimit: 2, Cache: NewRankingCache(client, time.Hour)}
	if _, err := app.NewRankService(store, cfg).RecomputeGlobalRanks(ctx); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	ranks := app.NewRankService(store, cfg)
	page, err := ranks.Leaderboard(ctx, domain.TimeframeAllTime, 2, 2, "u4")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if page.Total != 5 || len(page.Entries) != 2 || page.Entries[0].UserID != "u3" {
		t.Fatalf("expected second page of five users, got %+v", page)
	}
	if page.Viewer == nil || page.Viewer.Rank != 4 {
		t.Fatalf("expected viewer at rank 4, got %+v", page.Viewer)
	}

	first, err := ranks.Leaderboard(ctx, domain.TimeframeAllTime, 0, 2, "")
	if err != nil || first.Total != 5 || len(first.Entries) != 2 || first.Entries[0].UserID != "u1" {
		t.Fatalf("expected cached first page with full total, got %+v (%v)", first, err)
	}
}

func TestLeaderboardAfterRankingExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := seedRanked(t, 3)
	cfg := app.RankConfig{Cache: NewRankingCache(client, 10*time.Minute)}
	if _, err := app.NewRankService(store, cfg).RecomputeGlobalRanks(ctx); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	mr.FastForward(11 * time.Minute)

	page, err := app.NewRankService(store, cfg).Leaderboard(ctx, domain.TimeframeAllTime, 0, 10, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 {
		t.Fatalf("expected leaderboard from the store after expiry, got %+v", page)
	}
}
