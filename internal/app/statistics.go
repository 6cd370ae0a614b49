package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/gamification"
)

const (
	statsBatch       = 100
	statsRecent      = 10
	statsDays        = 7
	uncategorizedKey = "general"
)

// OverallStats is the user's lifetime counters.
type OverallStats struct {
	TotalPoints      int64   `json:"totalPoints"`
	MonthlyPoints    int64   `json:"monthlyPoints"`
	WeeklyPoints     int64   `json:"weeklyPoints"`
	DailyPoints      int64   `json:"dailyPoints"`
	QuizzesCompleted int     `json:"quizzesCompleted"`
	Accuracy         float64 `json:"accuracy"`
	CurrentStreak    int     `json:"currentStreak"`
	LongestStreak    int     `json:"longestStreak"`
	Rank             int     `json:"rank"`
	Level            int     `json:"level"`
}

// Progress sums completed attempts over a period.
type Progress struct {
	Quizzes  int     `json:"quizzes"`
	Points   int64   `json:"points"`
	Accuracy float64 `json:"accuracy"`
}

// DayProgress is Progress for one calendar day.
type DayProgress struct {
	Date string `json:"date"`
	Progress
}

// CategoryStats aggregates completed attempts per quiz category.
type CategoryStats struct {
	Category        string  `json:"category"`
	TotalQuizzes    int     `json:"totalQuizzes"`
	TotalPoints     int64   `json:"totalPoints"`
	AverageAccuracy float64 `json:"averageAccuracy"`
	AverageTime     float64 `json:"averageTime"`
}

// UserStatistics is the statistics view of one user.
type UserStatistics struct {
	Overall    OverallStats         `json:"overallStats"`
	Weekly     Progress             `json:"weeklyProgress"`
	Daily      []DayProgress        `json:"dailyProgress"`
	Categories []CategoryStats      `json:"categoryPerformance"`
	Recent     []domain.QuizAttempt `json:"recentAttempts"`
}

// Statistics reads userID's completed attempts and summarises the last seven
// days, the last seven calendar days one by one, and every category played.
// Attempts of quizzes that no longer exist are left out of the categories.
func (s *AttemptService) Statistics(ctx context.Context, userID string) (UserStatistics, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return UserStatistics{}, err
	}
	attempts, err := s.allCompleted(ctx, userID)
	if err != nil {
		return UserStatistics{}, err
	}

	now := s.now().In(s.loc)
	stats := UserStatistics{
		Overall: OverallStats{
			TotalPoints:      u.TotalPoints,
			MonthlyPoints:    u.MonthlyPoints,
			WeeklyPoints:     u.WeeklyPoints,
			DailyPoints:      u.DailyPoints,
			QuizzesCompleted: u.QuizzesCompleted,
			Accuracy:         u.Accuracy,
			CurrentStreak:    u.CurrentStreak,
			LongestStreak:    u.LongestStreak,
			Rank:             u.Rank,
			Level:            gamification.ComputeLevel(u.TotalPoints).Level,
		},
		Recent: attempts[:min(statsRecent, len(attempts))],
	}

	weekAgo := now.AddDate(0, 0, -statsDays)
	var weekly []domain.QuizAttempt
	for _, a := range attempts {
		if !a.CompletedAt.Before(weekAgo) {
			weekly = append(weekly, a)
		}
	}
	stats.Weekly = progressOf(weekly, 0)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	stats.Daily = make([]DayProgress, 0, statsDays)
	for i := statsDays - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1)
		var day []domain.QuizAttempt
		for _, a := range weekly {
			if !a.CompletedAt.Before(start) && a.CompletedAt.Before(end) {
				day = append(day, a)
			}
		}
		stats.Daily = append(stats.Daily, DayProgress{Date: start.Format(time.DateOnly), Progress: progressOf(day, 2)})
	}

	stats.Categories, err = s.categoryStats(ctx, attempts)
	if err != nil {
		return UserStatistics{}, err
	}
	return stats, nil
}

// allCompleted pages through every completed attempt, newest first.
func (s *AttemptService) allCompleted(ctx context.Context, userID string) ([]domain.QuizAttempt, error) {
	out := []domain.QuizAttempt{}
	for offset := 0; ; offset += statsBatch {
		page, total, err := s.attempts.ListCompletedAttempts(ctx, userID, offset, statsBatch)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		out = append(out, page...)
		if len(page) < statsBatch || len(out) >= total {
			return out, nil
		}
	}
}

func (s *AttemptService) categoryStats(ctx context.Context, attempts []domain.QuizAttempt) ([]CategoryStats, error) {
	categories := map[string]string{}
	type bucket struct {
		stats      CategoryStats
		accuracies []float64
		times      []float64
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, a := range attempts {
		category, ok := categories[a.QuizID]
		if !ok {
			quiz, err := s.quizzes.GetQuiz(ctx, a.QuizID)
			switch {
			case errors.Is(err, domain.ErrQuizNotFound):
				category = ""
			case err != nil:
				return nil, fmt.Errorf("load quiz %s: %w", a.QuizID, err)
			default:
				category = quiz.Category
				if category == "" {
					category = uncategorizedKey
				}
			}
			categories[a.QuizID] = category
		}
		if category == "" {
			continue
		}
		b, ok := buckets[category]
		if !ok {
			b = &bucket{stats: CategoryStats{Category: category}}
			buckets[category] = b
			order = append(order, category)
		}
		b.stats.TotalQuizzes++
		b.stats.TotalPoints += a.TotalPoints
		b.accuracies = append(b.accuracies, a.Accuracy)
		b.times = append(b.times, float64(a.TotalTime))
	}

	out := make([]CategoryStats, 0, len(order))
	for _, c := range order {
		b := buckets[c]
		b.stats.AverageAccuracy = gamification.Mean(b.accuracies, 2)
		b.stats.AverageTime = gamification.Mean(b.times, 2)
		out = append(out, b.stats)
	}
	return out, nil
}

func progressOf(attempts []domain.QuizAttempt, places int32) Progress {
	p := Progress{Quizzes: len(attempts)}
	accuracies := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		p.Points += a.TotalPoints
		accuracies = append(accuracies, a.Accuracy)
	}
	p.Accuracy = gamification.Mean(accuracies, places)
	return p
}
