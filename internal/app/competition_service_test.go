package app_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"quiz-arena-service/internal/app"
	"quiz-arena-service/internal/domain"
)

func (f *fixture) addCompetition(t *testing.T, id string, start, end time.Time, pool int64) {
	t.Helper()
	c := domain.NewCompetition(id, "Autumn Cup", start, end, pool)
	if err := f.store.CreateCompetition(context.Background(), c); err != nil {
		t.Fatalf("create competition: %v", err)
	}
}

func TestAddParticipantRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-time.Hour), now.Add(time.Hour), 1000)
	f.addCompetition(t, "later", now.Add(time.Hour), now.Add(2*time.Hour), 1000)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.addUser(t, id)
	}

	c, err := f.comps.AddParticipant(ctx, "cup", "u1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if c.TotalParticipants != 1 || len(c.Leaderboard) != 1 || c.Leaderboard[0].Rank != 1 || c.Leaderboard[0].Points != 0 {
		t.Fatalf("unexpected competition after join %+v", c)
	}
	if _, err := f.comps.AddParticipant(ctx, "cup", "u1"); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}
	if _, err := f.comps.AddParticipant(ctx, "later", "u1"); !errors.Is(err, domain.ErrNotInWindow) {
		t.Fatalf("expected not in window, got %v", err)
	}

	_, _ = f.store.UpdateCompetition(ctx, "cup", func(c *domain.Competition) error {
		c.MaxParticipants = 2
		return nil
	})
	if _, err := f.comps.AddParticipant(ctx, "cup", "u2"); err != nil {
		t.Fatalf("join u2: %v", err)
	}
	if _, err := f.comps.AddParticipant(ctx, "cup", "u3"); !errors.Is(err, domain.ErrCompetitionFull) {
		t.Fatalf("expected competition full, got %v", err)
	}
	if _, err := f.comps.AddParticipant(ctx, "missing", "u3"); !errors.Is(err, domain.ErrCompetitionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompetitionAttemptsFeedLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-time.Hour), now.Add(48*time.Hour), 1000)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.addUser(t, id)
	}
	_, _ = f.comps.AddParticipant(ctx, "cup", "u1")
	_, _ = f.comps.AddParticipant(ctx, "cup", "u2")

	// u3 is not a participant; its huge global score must not leak into the cup.
	f.setUser(t, "u3", func(u *domain.User) { u.TotalPoints = 99999 })
	f.play(t, "u1", "comp-quiz", 0, 0)
	f.play(t, "u2", "comp-quiz", 0, 1)
	f.play(t, "u3", "comp-quiz", 0, 1)

	c, err := f.comps.Get(ctx, "cup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(c.Leaderboard) != 2 {
		t.Fatalf("expected only participants on leaderboard, got %+v", c.Leaderboard)
	}
	first, second := c.Leaderboard[0], c.Leaderboard[1]
	if first.UserID != "u2" || first.Points != 20 || first.Accuracy != 100 || first.Rank != 1 {
		t.Fatalf("unexpected leader %+v", first)
	}
	if second.UserID != "u1" || second.Points != 10 || second.Accuracy != 50 || second.QuizzesCompleted != 1 {
		t.Fatalf("unexpected runner-up %+v", second)
	}

	u2, _ := f.store.GetUser(ctx, "u2")
	if u2.Rank != domain.Unranked {
		t.Fatalf("competition ranking must not touch global rank, got %d", u2.Rank)
	}
}

func TestRecomputeLeaderboardDropsInactiveAndCaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-time.Hour), now.Add(time.Hour), 0)

	participants := make([]domain.Participant, 0, 1005)
	for i := 0; i < 1005; i++ {
		id := fmt.Sprintf("p%04d", i)
		f.addUser(t, id)
		participants = append(participants, domain.Participant{UserID: id, Points: int64(i)})
	}
	f.setUser(t, "p1004", func(u *domain.User) { u.IsActive = false })
	_, _ = f.store.UpdateCompetition(ctx, "cup", func(c *domain.Competition) error {
		c.Participants = participants
		c.TotalParticipants = len(participants)
		return nil
	})

	c, err := f.comps.RecomputeLeaderboard(ctx, "cup")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(c.Leaderboard) != domain.CompetitionLeaderboardLimit {
		t.Fatalf("expected capped leaderboard, got %d", len(c.Leaderboard))
	}
	if c.Leaderboard[0].UserID != "p1003" || c.Leaderboard[0].Rank != 1 {
		t.Fatalf("expected inactive p1004 excluded and p1003 leading, got %+v", c.Leaderboard[0])
	}
	if c.TotalParticipants != 1005 {
		t.Fatalf("recompute must not change participant count, got %d", c.TotalParticipants)
	}
}

func TestFinalizeWinners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-time.Hour), now.Add(time.Hour), 10000)

	entries := make([]domain.LeaderboardEntry, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, domain.LeaderboardEntry{UserID: fmt.Sprintf("u%02d", i), Points: int64(100 - i)})
	}
	_, _ = f.store.UpdateCompetition(ctx, "cup", func(c *domain.Competition) error {
		c.Leaderboard = entries
		return nil
	})

	if _, err := f.comps.FinalizeWinners(ctx, "cup"); !errors.Is(err, domain.ErrNotEnded) {
		t.Fatalf("expected not ended, got %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	winners, err := f.comps.FinalizeWinners(ctx, "cup")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(winners) != 10 || winners[0].UserID != "u00" || winners[0].Prize != 4000 || winners[9].Prize != 50 {
		t.Fatalf("unexpected winners %+v", winners)
	}

	// Standings changing after the fact must not alter finalized winners.
	_, _ = f.store.UpdateCompetition(ctx, "cup", func(c *domain.Competition) error {
		c.Leaderboard[11].Points = 1000
		c.PrizePool = 1
		return nil
	})
	again, err := f.comps.FinalizeWinners(ctx, "cup")
	if err != nil {
		t.Fatalf("finalize again: %v", err)
	}
	if !reflect.DeepEqual(winners, again) {
		t.Fatalf("expected identical winners, got %+v vs %+v", winners, again)
	}
}

func TestFinalizeWinnersUsesCompetitionPrizeTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-48*time.Hour), now.Add(-time.Hour), 900)
	_, _ = f.store.UpdateCompetition(ctx, "cup", func(c *domain.Competition) error {
		c.PrizeTable = []float64{50, 50}
		c.Leaderboard = []domain.LeaderboardEntry{
			{UserID: "b", Points: 10, Accuracy: 90},
			{UserID: "a", Points: 10, Accuracy: 95},
			{UserID: "c", Points: 5},
		}
		return nil
	})
	winners, err := f.comps.FinalizeWinners(ctx, "cup")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	want := []domain.Winner{{Rank: 1, UserID: "a", Prize: 450}, {Rank: 2, UserID: "b", Prize: 450}, {Rank: 3, UserID: "c", Prize: 0}}
	if !reflect.DeepEqual(winners, want) {
		t.Fatalf("expected %+v, got %+v", want, winners)
	}
}

func TestCreateCompetitionValidatesDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()

	bad := []app.CompetitionDraft{
		{Name: "backwards", StartDate: now, EndDate: now.Add(-time.Hour)},
		{Name: "negative pool", StartDate: now, EndDate: now.Add(time.Hour), PrizePool: -1},
		{Name: "overpaid", StartDate: now, EndDate: now.Add(time.Hour), PrizeTable: []float64{80, 30}},
	}
	for _, draft := range bad {
		if _, err := f.comps.Create(ctx, draft); !errors.Is(err, domain.ErrInvalidCompetition) {
			t.Fatalf("%s: expected invalid competition, got %v", draft.Name, err)
		}
	}

	c, err := f.comps.Create(ctx, app.CompetitionDraft{Name: "Cup", StartDate: now, EndDate: now.Add(time.Hour), PrizePool: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.MaxParticipants != domain.DefaultMaxParticipants {
		t.Fatalf("unexpected competition %+v", c)
	}
	if _, err := f.comps.Get(ctx, c.ID); err != nil {
		t.Fatalf("get created competition: %v", err)
	}
}

func TestActiveCompetitionsAndParticipantViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addCompetition(t, "cup", now.Add(-time.Hour), now.Add(2*time.Hour), 1000)
	f.addCompetition(t, "past", now.Add(-72*time.Hour), now.Add(-48*time.Hour), 500)
	f.addCompetition(t, "later", now.Add(time.Hour), now.Add(5*time.Hour), 1000)
	f.addUser(t, "u1")
	f.addUser(t, "u2")

	active, err := f.comps.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "cup" {
		t.Fatalf("expected only the running cup, got %+v", active)
	}

	_, _ = f.comps.AddParticipant(ctx, "cup", "u1")
	f.play(t, "u1", "comp-quiz", 0, 1)
	stats, err := f.comps.ParticipantStats(ctx, "cup", "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Rank != 1 || stats.Points != 20 || stats.QuizzesCompleted != 1 || stats.Accuracy != 100 || stats.TotalParticipants != 1 {
		t.Fatalf("unexpected participant stats %+v", stats)
	}
	if _, err := f.comps.ParticipantStats(ctx, "cup", "u2"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}

	// u1 also took part in the finished contest and won it
	_, _ = f.store.UpdateCompetition(ctx, "past", func(c *domain.Competition) error {
		c.Participants = append(c.Participants, domain.Participant{UserID: "u1", Points: 40})
		c.Leaderboard = []domain.LeaderboardEntry{{UserID: "u1", Points: 40, Rank: 1}}
		c.Winners = []domain.Winner{{Rank: 1, UserID: "u1", Prize: 200}}
		c.TotalParticipants = 1
		return nil
	})
	h, err := f.comps.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.Total != 2 || h.Active != 1 || h.PrizesWon != 200 {
		t.Fatalf("unexpected history totals %+v", h)
	}
	if h.Competitions[0].ID != "cup" || h.Competitions[1].FinalRank != 1 || h.Competitions[1].Stats.Points != 40 {
		t.Fatalf("expected newest first with the won record last, got %+v", h.Competitions)
	}
	empty, _ := f.comps.History(ctx, "u2")
	if empty.Total != 0 || empty.Competitions == nil {
		t.Fatalf("expected an empty history, got %+v", empty)
	}
}
