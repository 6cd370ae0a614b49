package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-arena-service/internal/domain"
)

func TestStatisticsSummarisesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1")
	geo := regularQuiz()
	geo.ID, geo.Category = "geo-1", "geography"
	f.catalog.Put(geo)

	capitals := f.play(t, "u1", "quiz-1", 1, 0)
	f.clock.Advance(24 * time.Hour)
	daily := f.play(t, "u1", "daily-1", 0)
	f.clock.Advance(time.Minute)
	half := f.play(t, "u1", "geo-1", 1, 1)

	stats, err := f.attempts.Statistics(ctx, "u1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Overall.QuizzesCompleted != 3 || stats.Overall.Level != 1 {
		t.Fatalf("unexpected overall stats %+v", stats.Overall)
	}
	wantPoints := capitals.Attempt.TotalPoints + daily.Attempt.TotalPoints + half.Attempt.TotalPoints
	if stats.Weekly.Quizzes != 3 || stats.Weekly.Points != wantPoints || stats.Weekly.Accuracy != 83 {
		t.Fatalf("unexpected weekly progress %+v", stats.Weekly)
	}
	if len(stats.Recent) != 3 || stats.Recent[0].QuizID != "geo-1" {
		t.Fatalf("expected newest attempt first, got %+v", stats.Recent)
	}

	if len(stats.Daily) != 7 {
		t.Fatalf("expected seven days, got %d", len(stats.Daily))
	}
	yesterday, today := stats.Daily[5], stats.Daily[6]
	if today.Date != "2026-10-15" || today.Quizzes != 2 || today.Accuracy != 75 {
		t.Fatalf("unexpected today %+v", today)
	}
	if yesterday.Date != "2026-10-14" || yesterday.Quizzes != 1 || yesterday.Accuracy != 100 {
		t.Fatalf("unexpected yesterday %+v", yesterday)
	}

	if len(stats.Categories) != 2 {
		t.Fatalf("expected two categories, got %+v", stats.Categories)
	}
	geoStats, general := stats.Categories[0], stats.Categories[1]
	if geoStats.Category != "geography" || geoStats.TotalQuizzes != 1 || geoStats.AverageAccuracy != 50 || geoStats.AverageTime != 10 {
		t.Fatalf("unexpected geography stats %+v", geoStats)
	}
	if general.Category != "general" || general.TotalQuizzes != 2 || general.AverageTime != 7.5 {
		t.Fatalf("unexpected general stats %+v", general)
	}

	f.clock.Advance(8 * 24 * time.Hour)
	stats, _ = f.attempts.Statistics(ctx, "u1")
	if stats.Weekly.Quizzes != 0 || stats.Daily[6].Quizzes != 0 || len(stats.Categories) != 2 {
		t.Fatalf("expected an idle week with categories kept, got %+v", stats)
	}
}

func TestStatisticsForUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.attempts.Statistics(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
