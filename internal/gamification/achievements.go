package gamification

import (
	"math"

	"quiz-arena-service/internal/domain"
)

// Achievement is a milestone with the user's progress towards it.
type Achievement struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress"`
	Target      float64 `json:"target"`
	Achieved    bool    `json:"achieved"`
	Reward      int64   `json:"reward"`
}

// AchievementSummary totals an achievement list.
type AchievementSummary struct {
	Achieved             int   `json:"totalAchievements"`
	Possible             int   `json:"totalPossible"`
	CompletionPercentage int   `json:"completionPercentage"`
	RewardsEarned        int64 `json:"totalRewardsEarned"`
}

type milestone struct {
	id, title, description string
	target                 float64
	reward                 int64
	progress               func(u domain.User, competitions int) float64
}

var milestones = []milestone{
	{"quiz_master", "Quiz Master", "Complete 50 quizzes", 50, 500,
		func(u domain.User, _ int) float64 { return float64(u.QuizzesCompleted) }},
	{"accuracy_pro", "Accuracy Pro", "Achieve 90% accuracy rate", 90, 300,
		func(u domain.User, _ int) float64 { return u.Accuracy }},
	{"streak_champion", "Streak Champion", "Maintain a 7-day streak", 7, 200,
		func(u domain.User, _ int) float64 { return float64(u.CurrentStreak) }},
	{"point_millionaire", "Point Millionaire", "Earn 10,000 total points", 10000, 1000,
		func(u domain.User, _ int) float64 { return float64(u.TotalPoints) }},
	{"daily_warrior", "Daily Warrior", "Complete 30 daily quizzes", 30, 400,
		func(u domain.User, _ int) float64 { return math.Min(float64(u.DailyQuizzesCompleted), 30) }},
	{"competition_hero", "Competition Hero", "Participate in 5 competitions", 5, 600,
		func(_ domain.User, competitions int) float64 { return float64(competitions) }},
}

// Achievements evaluates every milestone for u, who joined competitions contests.
// Achievements are informational; their rewards are not granted as points.
func Achievements(u domain.User, competitions int) ([]Achievement, AchievementSummary) {
	out := make([]Achievement, 0, len(milestones))
	sum := AchievementSummary{Possible: len(milestones)}
	for _, m := range milestones {
		progress := m.progress(u, competitions)
		a := Achievement{
			ID:          m.id,
			Title:       m.title,
			Description: m.description,
			Progress:    progress,
			Target:      m.target,
			Achieved:    progress >= m.target,
			Reward:      m.reward,
		}
		if a.Achieved {
			sum.Achieved++
			sum.RewardsEarned += a.Reward
		}
		out = append(out, a)
	}
	sum.CompletionPercentage = int(math.Round(float64(sum.Achieved) * 100 / float64(sum.Possible)))
	return out, sum
}
